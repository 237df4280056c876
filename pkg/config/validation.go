package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Storage.BlockLen > layout.MaxBlockLen {
		return fmt.Errorf("storage.block_len: %s exceeds the maximum of %d bytes",
			cfg.Storage.BlockLen, layout.MaxBlockLen)
	}

	if s3 := cfg.Backup.S3; s3.Endpoint != "" && s3.Bucket == "" {
		return errors.New("backup.s3.bucket: required when an endpoint is set")
	}

	return nil
}

// formatValidationErrors joins field errors into one message such as
// "Config.Storage.Path failed on 'required'".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
