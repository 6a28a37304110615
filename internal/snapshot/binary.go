package snapshot

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	apperrors "github.com/retainer-prof/pkg/errors"
)

// Binary snapshots carry the same document as the JSON form, encoded as
// protobuf wire messages behind a four-byte magic. Entity IDs are implied
// by position and never written. Field numbers:
//
//	Snapshot    1 version, 2 info_tables, 3 cost_centres, 4 cost_centre_stacks,
//	            5 closures, 6 roots, 7 generations, 8 static_objects
//	InfoTable   1 name, 2 kind, 3 nptrs, 4 nnonptrs, 5 srt, 6 fun, 7 bitmap, 8 large
//	Fun         1 type, 2 arity, 3 bitmap, 4 large
//	Bitmap      1 size, 2 bits, 3 words, 4 layout
//	CostCentre  1 label, 2 module
//	CCS         1 cc, 2 prev
//	Closure     1 info, 2 ptrs, 3 args, 4 frames, 5 thread, 6 bco_bitmap, 7 ccs
//	Frame       1 info, 2 payload
//	Thread      1 state, 2 link
//	Roots       1 threads, 2 weak, 3 stable
//	Generation  1 mut_list, 2 mut_once_list
//
// Repeated scalars are packed varints.
const (
	BinaryMagic   = "RSNP"
	BinaryVersion = 1
)

// IsBinary reports whether data starts with the binary snapshot magic.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, []byte(BinaryMagic))
}

// encoder appends protobuf wire fields. Zero scalars are omitted.
type encoder struct {
	b []byte
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) str(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

// msg always writes the field, so empty entries of repeated messages keep
// their position.
func (e *encoder) msg(num protowire.Number, fn func(*encoder)) {
	var sub encoder
	fn(&sub)
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, sub.b)
}

func (e *encoder) packed(num protowire.Number, vs []uint64) {
	if len(vs) == 0 {
		return
	}
	var buf []byte
	for _, v := range vs {
		buf = protowire.AppendVarint(buf, v)
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, buf)
}

func (e *encoder) packed32(num protowire.Number, vs []uint32) {
	wide := make([]uint64, len(vs))
	for i, v := range vs {
		wide[i] = uint64(v)
	}
	e.packed(num, wide)
}

func (e *encoder) bitmap(num protowire.Number, d *bitmapDoc) {
	if d == nil {
		return
	}
	e.msg(num, func(e *encoder) {
		e.uint(1, uint64(d.Size))
		e.uint(2, d.Bits)
		e.packed(3, d.Words)
		e.str(4, d.Layout)
	})
}

func marshalBinary(doc *document) []byte {
	e := &encoder{b: []byte(BinaryMagic)}
	e.uint(1, BinaryVersion)

	for _, d := range doc.InfoTables {
		e.msg(2, func(e *encoder) {
			e.str(1, d.Name)
			e.str(2, d.Kind)
			e.uint(3, uint64(d.NPtrs))
			e.uint(4, uint64(d.NNonPtrs))
			e.packed32(5, d.SRT)
			if d.Fun != nil {
				e.msg(6, func(e *encoder) {
					e.str(1, d.Fun.Type)
					e.uint(2, uint64(d.Fun.Arity))
					e.bitmap(3, d.Fun.Bitmap)
					e.bitmap(4, d.Fun.Large)
				})
			}
			e.bitmap(7, d.Bitmap)
			e.bitmap(8, d.Large)
		})
	}
	for _, d := range doc.CostCentres {
		e.msg(3, func(e *encoder) {
			e.str(1, d.Label)
			e.str(2, d.Module)
		})
	}
	for _, d := range doc.CostCentreStacks {
		e.msg(4, func(e *encoder) {
			e.uint(1, uint64(d.CC))
			e.uint(2, uint64(d.Prev))
		})
	}
	for _, d := range doc.Closures {
		e.msg(5, func(e *encoder) {
			e.uint(1, uint64(d.Info))
			e.packed32(2, d.Ptrs)
			e.packed(3, d.Args)
			for _, f := range d.Frames {
				e.msg(4, func(e *encoder) {
					e.uint(1, uint64(f.Info))
					e.packed(2, f.Payload)
				})
			}
			if d.Thread != nil {
				e.msg(5, func(e *encoder) {
					e.str(1, d.Thread.State)
					e.uint(2, uint64(d.Thread.Link))
				})
			}
			e.bitmap(6, d.BCOBitmap)
			e.uint(7, uint64(d.CCS))
		})
	}
	e.msg(6, func(e *encoder) {
		e.packed32(1, doc.Roots.Threads)
		e.packed32(2, doc.Roots.Weak)
		e.packed32(3, doc.Roots.Stable)
	})
	for _, g := range doc.Generations {
		e.msg(7, func(e *encoder) {
			e.packed32(1, g.MutList)
			e.packed32(2, g.MutOnceList)
		})
	}
	e.packed32(8, doc.StaticObjects)
	return e.b
}

// field is one decoded wire field. Only varint and length-delimited
// fields are surfaced; other wire types are skipped.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	v     uint64
	bytes []byte
}

func (f field) int() int       { return int(f.v) }
func (f field) u32() uint32    { return uint32(f.v) }
func (f field) string() string { return string(f.bytes) }

func (f field) varints() ([]uint64, error) {
	if f.typ == protowire.VarintType {
		return []uint64{f.v}, nil
	}
	var out []uint64
	for b := f.bytes; len(b) > 0; {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

func (f field) u32s() ([]uint32, error) {
	wide, err := f.varints()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(wide))
	for i, v := range wide {
		out[i] = uint32(v)
	}
	return out, nil
}

func eachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalBinary(data []byte) (*document, error) {
	if !IsBinary(data) {
		return nil, apperrors.New(apperrors.CodeParseError, "missing binary snapshot magic")
	}
	doc := &document{}
	version := uint64(0)
	err := eachField(data[len(BinaryMagic):], func(f field) (err error) {
		switch f.num {
		case 1:
			version = f.v
		case 2:
			var d infoDoc
			err = decodeInfo(f.bytes, &d)
			doc.InfoTables = append(doc.InfoTables, d)
		case 3:
			var d costCentreDoc
			err = eachField(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					d.Label = f.string()
				case 2:
					d.Module = f.string()
				}
				return nil
			})
			doc.CostCentres = append(doc.CostCentres, d)
		case 4:
			var d ccsDoc
			err = eachField(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					d.CC = f.u32()
				case 2:
					d.Prev = f.u32()
				}
				return nil
			})
			doc.CostCentreStacks = append(doc.CostCentreStacks, d)
		case 5:
			var d closureDoc
			err = decodeClosure(f.bytes, &d)
			doc.Closures = append(doc.Closures, d)
		case 6:
			err = eachField(f.bytes, func(f field) (err error) {
				switch f.num {
				case 1:
					doc.Roots.Threads, err = f.u32s()
				case 2:
					doc.Roots.Weak, err = f.u32s()
				case 3:
					doc.Roots.Stable, err = f.u32s()
				}
				return err
			})
		case 7:
			var g generationDoc
			err = eachField(f.bytes, func(f field) (err error) {
				switch f.num {
				case 1:
					g.MutList, err = f.u32s()
				case 2:
					g.MutOnceList, err = f.u32s()
				}
				return err
			})
			doc.Generations = append(doc.Generations, g)
		case 8:
			var statics []uint32
			statics, err = f.u32s()
			doc.StaticObjects = append(doc.StaticObjects, statics...)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to decode binary snapshot", err)
	}
	if version != BinaryVersion {
		return nil, apperrors.Newf(apperrors.CodeParseError, "unsupported binary snapshot version %d", version)
	}
	return doc, nil
}

func decodeInfo(b []byte, d *infoDoc) error {
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			d.Name = f.string()
		case 2:
			d.Kind = f.string()
		case 3:
			d.NPtrs = f.int()
		case 4:
			d.NNonPtrs = f.int()
		case 5:
			d.SRT, err = f.u32s()
		case 6:
			d.Fun = &funDoc{}
			err = eachField(f.bytes, func(f field) (err error) {
				switch f.num {
				case 1:
					d.Fun.Type = f.string()
				case 2:
					d.Fun.Arity = f.int()
				case 3:
					d.Fun.Bitmap, err = decodeBitmap(f.bytes)
				case 4:
					d.Fun.Large, err = decodeBitmap(f.bytes)
				}
				return err
			})
		case 7:
			d.Bitmap, err = decodeBitmap(f.bytes)
		case 8:
			d.Large, err = decodeBitmap(f.bytes)
		}
		return err
	})
}

func decodeClosure(b []byte, d *closureDoc) error {
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			d.Info = f.u32()
		case 2:
			d.Ptrs, err = f.u32s()
		case 3:
			d.Args, err = f.varints()
		case 4:
			var fr frameDoc
			err = eachField(f.bytes, func(f field) (err error) {
				switch f.num {
				case 1:
					fr.Info = f.u32()
				case 2:
					fr.Payload, err = f.varints()
				}
				return err
			})
			d.Frames = append(d.Frames, fr)
		case 5:
			d.Thread = &threadDoc{}
			err = eachField(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					d.Thread.State = f.string()
				case 2:
					d.Thread.Link = f.u32()
				}
				return nil
			})
		case 6:
			d.BCOBitmap, err = decodeBitmap(f.bytes)
		case 7:
			d.CCS = f.u32()
		}
		return err
	})
}

func decodeBitmap(b []byte) (*bitmapDoc, error) {
	d := &bitmapDoc{}
	err := eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			d.Size = f.int()
		case 2:
			d.Bits = f.v
		case 3:
			d.Words, err = f.varints()
		case 4:
			d.Layout = f.string()
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bitmap: %w", err)
	}
	return d, nil
}
