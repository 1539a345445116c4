// Package dist implements the portable wire format for cellvm programs.
// Programs are encoded as canonical CBOR so that equal programs encode to
// equal bytes; function operands travel by name and are resolved against
// the receiving Environment on decode.
package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/cellvm/vm"
	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the current program encoding version.
const WireVersion = 1

// cborEncMode uses canonical encoding for deterministic output.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireProgram struct {
	Version      uint8             `cbor:"1,keyasint"`
	Name         string            `cbor:"2,keyasint,omitempty"`
	ArgCount     int               `cbor:"3,keyasint"`
	RegCount     int               `cbor:"4,keyasint"`
	Instructions []wireInstruction `cbor:"5,keyasint"`
}

type wireInstruction struct {
	Op       uint8  `cbor:"1,keyasint"`
	N        int64  `cbor:"2,keyasint,omitempty"`
	Reg      int    `cbor:"3,keyasint,omitempty"`
	Loc      int    `cbor:"4,keyasint,omitempty"`
	Fn       string `cbor:"5,keyasint,omitempty"` // function name
	FirstReg int    `cbor:"6,keyasint,omitempty"`
	Argc     int    `cbor:"7,keyasint,omitempty"`
}

// MarshalProgram serializes a Program to canonical CBOR bytes.
func MarshalProgram(p *vm.Program) ([]byte, error) {
	w := wireProgram{
		Version:      WireVersion,
		Name:         p.Name,
		ArgCount:     p.ArgCount,
		RegCount:     p.RegCount,
		Instructions: make([]wireInstruction, len(p.Instructions)),
	}
	for i, ins := range p.Instructions {
		wi := wireInstruction{
			Op:       uint8(ins.Op),
			N:        ins.N,
			Reg:      ins.Reg,
			Loc:      ins.Loc,
			FirstReg: ins.FirstReg,
			Argc:     ins.Argc,
		}
		if ins.Fn != nil {
			wi.Fn = ins.Fn.Name
		} else if ins.Op == vm.OpCall || ins.Op == vm.OpTail {
			return nil, fmt.Errorf("dist: marshal %s: instruction %d calls no function", p.Name, i)
		}
		w.Instructions[i] = wi
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalProgram deserializes a Program, resolving each called function
// by name in env. Names env does not know yet are created without
// implementations, so programs may be loaded before their callees. The
// decoded program is validated before it is returned.
func UnmarshalProgram(data []byte, env *vm.Environment) (*vm.Program, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("dist: unmarshal program: %w", err)
	}
	if w.Version != WireVersion {
		return nil, fmt.Errorf("dist: unsupported program version %d", w.Version)
	}

	p := &vm.Program{
		Name:         w.Name,
		ArgCount:     w.ArgCount,
		RegCount:     w.RegCount,
		Instructions: make([]vm.Instruction, len(w.Instructions)),
	}
	for i, wi := range w.Instructions {
		ins := vm.Instruction{
			Op:       vm.Opcode(wi.Op),
			N:        wi.N,
			Reg:      wi.Reg,
			Loc:      wi.Loc,
			FirstReg: wi.FirstReg,
			Argc:     wi.Argc,
		}
		if wi.Fn != "" {
			ins.Fn = env.GetFunction(wi.Fn, true)
		}
		p.Instructions[i] = ins
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("dist: %w", err)
	}
	return p, nil
}

// Hash returns the content hash of a program: the SHA-256 of its canonical
// encoding. Programs that disassemble identically hash identically.
func Hash(p *vm.Program) ([32]byte, error) {
	data, err := MarshalProgram(p)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
