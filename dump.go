package vire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// dumpSignature identifies a Vire bytecode chunk the way the
// original's LUA_SIGNATURE + version/format bytes do (§6.2): four
// magic bytes followed by a format version, so a loader can reject
// anything that isn't ours before trusting the byte layout that
// follows.
var dumpSignature = [4]byte{0x1B, 'V', 'i', 'R'}

const dumpFormatVersion = 1

// Dump serializes proto (and, transitively, every nested prototype)
// to a flat byte buffer, following the same manual
// append-fixed-width-fields discipline as an
// encoding/binary-based instruction encoder.
func Dump(proto *Proto) []byte {
	buf := append([]byte{}, dumpSignature[:]...)
	buf = append(buf, dumpFormatVersion)
	buf = dumpProto(buf, proto)
	return buf
}

func dumpProto(buf []byte, p *Proto) []byte {
	buf = encodeString(buf, p.Source)
	buf = encodeU32(buf, uint32(p.NumParams))
	buf = encodeBool(buf, p.IsVararg)
	buf = encodeU32(buf, uint32(p.MaxStackSize))

	buf = encodeU32(buf, uint32(len(p.Code)))
	for _, inst := range p.Code {
		buf = encodeU32(buf, uint32(inst))
	}
	buf = encodeU32(buf, uint32(len(p.LineInfo)))
	for _, l := range p.LineInfo {
		buf = encodeU32(buf, uint32(l))
	}

	buf = encodeU32(buf, uint32(len(p.Constants)))
	for _, k := range p.Constants {
		buf = dumpConstant(buf, k)
	}

	buf = encodeU32(buf, uint32(len(p.Upvalues)))
	for _, uv := range p.Upvalues {
		buf = encodeString(buf, uv.Name)
		buf = encodeBool(buf, uv.InStack)
		buf = encodeU32(buf, uint32(uv.Index))
	}

	buf = encodeU32(buf, uint32(len(p.Protos)))
	for _, sub := range p.Protos {
		buf = dumpProto(buf, sub)
	}
	return buf
}

// dumpConstant encodes one constant-pool entry. Only the value kinds
// legal in a constant pool (nil, boolean, number, string) are
// supported; anything else is a programmer error in the assembler.
func dumpConstant(buf []byte, v Value) []byte {
	switch {
	case v.IsNil():
		return append(buf, 0)
	case v.IsBoolean():
		buf = append(buf, 1)
		return encodeBool(buf, v.AsBool())
	case v.tag == tagInt:
		buf = append(buf, 2)
		return encodeU64(buf, uint64(v.AsInt()))
	case v.tag == tagFloat:
		buf = append(buf, 3)
		return encodeU64(buf, math.Float64bits(v.AsFloat()))
	case v.IsString():
		buf = append(buf, 4)
		return encodeString(buf, v.AsString().String())
	default:
		panic(fmt.Sprintf("vire: cannot dump a constant of type %s", v.Type()))
	}
}

// Load decodes a buffer produced by Dump back into a live Proto tree,
// tracked by gc.
func Load(buf []byte, gc *GC) (*Proto, error) {
	if len(buf) < 5 || [4]byte{buf[0], buf[1], buf[2], buf[3]} != dumpSignature {
		return nil, fmt.Errorf("vire: not a Vire bytecode chunk")
	}
	if buf[4] != dumpFormatVersion {
		return nil, fmt.Errorf("vire: unsupported bytecode format version %d", buf[4])
	}
	d := &decoder{buf: buf, pos: 5}
	p, err := d.proto(gc)
	if err == nil && d.err != nil {
		return nil, d.err
	}
	return p, err
}

type decoder struct {
	buf []byte
	pos int
	err error // set by any primitive read that runs past the end of buf
}

func (d *decoder) proto(gc *GC) (*Proto, error) {
	p := NewProto(gc)
	var err error
	if p.Source, err = d.str(); err != nil {
		return nil, err
	}
	n, _ := d.u32()
	p.NumParams = int(n)
	p.IsVararg, _ = d.boolean()
	n, _ = d.u32()
	p.MaxStackSize = int(n)

	codeLen, _ := d.u32()
	p.Code = make([]Instruction, codeLen)
	for i := range p.Code {
		v, _ := d.u32()
		p.Code[i] = Instruction(v)
	}
	lineLen, _ := d.u32()
	p.LineInfo = make([]int32, lineLen)
	for i := range p.LineInfo {
		v, _ := d.u32()
		p.LineInfo[i] = int32(v)
	}

	kLen, _ := d.u32()
	p.Constants = make([]Value, kLen)
	for i := range p.Constants {
		v, err := d.constant(gc)
		if err != nil {
			return nil, err
		}
		p.Constants[i] = v
	}

	uvLen, _ := d.u32()
	p.Upvalues = make([]UpvalDesc, uvLen)
	for i := range p.Upvalues {
		name, _ := d.str()
		inStack, _ := d.boolean()
		idx, _ := d.u32()
		p.Upvalues[i] = UpvalDesc{Name: name, InStack: inStack, Index: int(idx)}
	}

	subLen, _ := d.u32()
	p.Protos = make([]*Proto, subLen)
	for i := range p.Protos {
		sub, err := d.proto(gc)
		if err != nil {
			return nil, err
		}
		p.Protos[i] = sub
	}
	return p, nil
}

func (d *decoder) constant(gc *GC) (Value, error) {
	if d.pos >= len(d.buf) {
		return Nil(), fmt.Errorf("vire: truncated bytecode (constant tag)")
	}
	tag := d.buf[d.pos]
	d.pos++
	switch tag {
	case 0:
		return Nil(), nil
	case 1:
		b, _ := d.boolean()
		return Bool(b), nil
	case 2:
		u, _ := d.u64()
		return Int(int64(u)), nil
	case 3:
		u, _ := d.u64()
		return Float(math.Float64frombits(u)), nil
	case 4:
		s, err := d.str()
		if err != nil {
			return Nil(), err
		}
		b := []byte(s)
		if len(b) <= shortStringCap {
			return fromString(gc.strings.NewShort(b)), nil
		}
		return fromString(gc.strings.NewLong(b)), nil
	default:
		return Nil(), fmt.Errorf("vire: unknown constant tag %d", tag)
	}
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		d.err = fmt.Errorf("vire: truncated bytecode (u32)")
		return 0, d.err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		d.err = fmt.Errorf("vire: truncated bytecode (u64)")
		return 0, d.err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) boolean() (bool, error) {
	if d.pos >= len(d.buf) {
		d.err = fmt.Errorf("vire: truncated bytecode (bool)")
		return false, d.err
	}
	b := d.buf[d.pos] != 0
	d.pos++
	return b, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.buf) {
		d.err = fmt.Errorf("vire: truncated bytecode (string)")
		return "", d.err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func encodeU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func encodeU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func encodeBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func encodeString(buf []byte, s string) []byte {
	buf = encodeU32(buf, uint32(len(s)))
	return append(buf, s...)
}
