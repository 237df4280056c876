package commands

import (
	"strconv"

	"github.com/marmos91/blockfile/internal/cli/output"
	"github.com/marmos91/blockfile/pkg/blockfile"
	"github.com/marmos91/blockfile/pkg/catalog"
)

// statsView is the result of stat and format.
type statsView struct {
	Path            string `json:"path" yaml:"path"`
	blockfile.Stats `yaml:",inline"`

	// Set only when the catalog was consulted.
	Objects      *int `json:"objects,omitempty" yaml:"objects,omitempty"`
	Unreferenced *int `json:"unreferenced,omitempty" yaml:"unreferenced,omitempty"`
}

func (v statsView) table() *output.TableData {
	t := output.NewTableData("Property", "Value")
	t.AddRow("Path", v.Path)
	t.AddRow("Block length", output.Bytes(int64(v.BlockLen)))
	t.AddRow("Blocks", strconv.FormatUint(uint64(v.BlockCount), 10))
	t.AddRow("Occupied", strconv.Itoa(v.OccupiedCount))
	t.AddRow("Free", strconv.Itoa(v.FreeCount))
	t.AddRow("File size", output.Bytes(v.FileSize))
	if v.Objects != nil {
		t.AddRow("Objects", strconv.Itoa(*v.Objects))
	}
	if v.Unreferenced != nil {
		t.AddRow("Unreferenced blocks", strconv.Itoa(*v.Unreferenced))
	}
	return t
}

func (v statsView) Headers() []string { return v.table().Headers() }
func (v statsView) Rows() [][]string  { return v.table().Rows() }

// entriesView lists catalog entries.
type entriesView []*catalog.Entry

func (v entriesView) Headers() []string {
	return []string{"Name", "Size", "Blocks", "Indices", "Created"}
}

func (v entriesView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, e := range v {
		rows = append(rows, []string{
			e.Name,
			output.Bytes(e.Size),
			strconv.Itoa(len(e.Indices)),
			output.Indices(e.Indices),
			output.Time(e.Created),
		})
	}
	return rows
}

// indicesView is the result of a raw write.
type indicesView struct {
	Indices []uint32 `json:"indices" yaml:"indices"`
	Bytes   int      `json:"bytes" yaml:"bytes"`
}

func (v indicesView) Headers() []string { return []string{"Blocks", "Indices", "Bytes"} }

func (v indicesView) Rows() [][]string {
	return [][]string{{strconv.Itoa(len(v.Indices)), output.Indices(v.Indices), strconv.Itoa(v.Bytes)}}
}

// blockView is one row of inspect output.
type blockView struct {
	blockfile.BlockInfo `yaml:",inline"`
	Owner               string `json:"owner,omitempty" yaml:"owner,omitempty"`
}

type blocksView []blockView

func (v blocksView) Headers() []string {
	return []string{"Index", "Offset", "Length", "State", "Owner"}
}

func (v blocksView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, b := range v {
		state := "used"
		if b.Free {
			state = "free"
		}
		owner := b.Owner
		if owner == "" {
			owner = "-"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(b.Index), 10),
			strconv.FormatInt(b.Offset, 10),
			strconv.FormatUint(uint64(b.DataLength), 10),
			state,
			owner,
		})
	}
	return rows
}
