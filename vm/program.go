// program.go - instruction-stream input types

package vm

import "encoding/json"

// Instruction is one element of the debug document's instructions array.
// ID is opaque and passed through unchanged; Line defaults to SourceLine
// when the input omits it.
type Instruction struct {
	Assembly   string `json:"assembly"`
	ID         any    `json:"id,omitempty"`
	SourceLine int    `json:"sourceLine"`
	Line       int    `json:"line"`
}

// UnmarshalJSON applies the Line-defaults-to-SourceLine rule (spec §3)
// while still allowing Line to be explicitly 0.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	type alias Instruction
	var hasLine struct {
		alias
		Line *int `json:"line"`
	}
	if err := json.Unmarshal(data, &hasLine); err != nil {
		return err
	}
	*i = Instruction(hasLine.alias)
	if hasLine.Line != nil {
		i.Line = *hasLine.Line
	} else {
		i.Line = i.SourceLine
	}
	return nil
}

// Program is the debug document the core consumes: an instructions
// array. The step budget is not part of it; it is passed to Run.
type Program struct {
	Instructions []Instruction `json:"instructions"`
}
