package x86_64

import (
	"fmt"
	"strings"
)

// Emitter is a thin text-writer wrapper: instruction/label/directive
// helpers over an in-memory buffer, with a running counter for fresh
// labels. Output is GNU-assembler syntax.
type Emitter struct {
	out        *strings.Builder
	labelCount int
}

// NewEmitter creates an Emitter writing into an in-memory buffer; callers
// retrieve the final text via String().
func NewEmitter() *Emitter {
	return &Emitter{out: &strings.Builder{}}
}

// NewLabel returns a fresh globally-unique label of the form L_<prefix><n>.
func (e *Emitter) NewLabel(prefix string) string {
	e.labelCount++
	return fmt.Sprintf("L_%s%d", prefix, e.labelCount)
}

func (e *Emitter) Comment(format string, args ...interface{}) {
	fmt.Fprintf(e.out, "\t# %s\n", fmt.Sprintf(format, args...))
}

func (e *Emitter) BlankLine() { e.out.WriteByte('\n') }

func (e *Emitter) Directive(name string, args ...string) {
	if len(args) == 0 {
		fmt.Fprintf(e.out, "\t%s\n", name)
		return
	}
	fmt.Fprintf(e.out, "\t%s %s\n", name, strings.Join(args, ", "))
}

func (e *Emitter) Label(name string) {
	fmt.Fprintf(e.out, "%s:\n", name)
}

func (e *Emitter) Raw(line string) {
	fmt.Fprintln(e.out, line)
}

// Instr0/Instr1/Instr2/Instr3 emit a mnemonic with 0..3 operands.
func (e *Emitter) Instr0(mnemonic string) {
	fmt.Fprintf(e.out, "\t%s\n", mnemonic)
}

func (e *Emitter) Instr1(mnemonic, a string) {
	fmt.Fprintf(e.out, "\t%s %s\n", mnemonic, a)
}

func (e *Emitter) Instr2(mnemonic, a, b string) {
	fmt.Fprintf(e.out, "\t%s %s, %s\n", mnemonic, a, b)
}

func (e *Emitter) Instr3(mnemonic, a, b, c string) {
	fmt.Fprintf(e.out, "\t%s %s, %s, %s\n", mnemonic, a, b, c)
}

func (e *Emitter) String() string { return e.out.String() }
