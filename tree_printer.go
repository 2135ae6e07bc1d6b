package vire

import (
	"fmt"
	"strings"

	"github.com/vire-lang/vire/ascii"
)

// treePrinter is a small indent-tracking string builder. Lifted
// directly from this codebase's tree-printing helper and repurposed
// here as the backbone of the bytecode disassembler (§4.7): proto
// disassembly nests the same way a syntax tree does, one indent level
// per nested closure prototype.
type treePrinter struct {
	padStr []string
	output strings.Builder
}

func newTreePrinter() *treePrinter { return &treePrinter{} }

func (tp *treePrinter) indent(s string) { tp.padStr = append(tp.padStr, s) }
func (tp *treePrinter) unindent()       { tp.padStr = tp.padStr[:len(tp.padStr)-1] }
func (tp *treePrinter) padding() {
	for _, item := range tp.padStr {
		tp.output.WriteString(item)
	}
}
func (tp *treePrinter) writel(s string)  { tp.output.WriteString(s); tp.output.WriteRune('\n') }
func (tp *treePrinter) pwritel(s string) { tp.padding(); tp.writel(s) }

// Disassemble renders proto (and every nested prototype, indented
// under a CLOSURE line) as a human-readable bytecode listing, using
// the same semantic color theme the rest of this codebase's
// diagnostics use (§4.7 — debug tooling, never consulted by the
// interpreter).
func Disassemble(proto *Proto, theme ascii.Theme) string {
	tp := newTreePrinter()
	disasm(tp, proto, theme)
	return tp.output.String()
}

func disasm(tp *treePrinter, p *Proto, theme ascii.Theme) {
	header := fmt.Sprintf("function <%s> (%d params%s, %d slots)",
		orAnon(p.Source), p.NumParams, varargSuffix(p.IsVararg), p.MaxStackSize)
	tp.pwritel(ascii.Color(theme.Accent, "%s", header))
	tp.indent("  ")
	for pc, inst := range p.Code {
		line := p.LineAt(pc)
		opName := ascii.Color(theme.Operator, "%-10s", inst.Op().String())
		operands := formatOperands(inst)
		tp.pwritel(fmt.Sprintf("%s  %s%s  %s",
			ascii.Color(theme.Muted, "%4d", pc),
			opName,
			ascii.Color(theme.Operand, "%s", operands),
			ascii.Color(theme.Comment, "; line %d", line)))
		if inst.Op() == OpClosure {
			disasm(tp, p.Protos[inst.Bx()], theme)
		}
	}
	tp.unindent()
}

func orAnon(s string) string {
	if s == "" {
		return "anonymous"
	}
	return s
}

func varargSuffix(vararg bool) string {
	if vararg {
		return ", vararg"
	}
	return ""
}

func formatOperands(inst Instruction) string {
	switch inst.Op() {
	case OpJmp, OpForLoop, OpForPrep:
		return fmt.Sprintf("A=%d sBx=%d", inst.A(), inst.SBx())
	case OpLoadK, OpClosure, OpGetTabUp, OpSetTabUp:
		return fmt.Sprintf("A=%d Bx=%d", inst.A(), inst.Bx())
	default:
		return fmt.Sprintf("A=%d B=%d C=%d", inst.A(), inst.B(), inst.C())
	}
}
