// Package snapshot loads heap snapshots written as JSON documents or in
// the equivalent binary encoding.
//
// Closures are addressed by position: the i-th entry of "closures" has ID
// i+1, and every reference in the document (fields, SRTs, payload words,
// roots and lists) uses that numbering.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/pkg/compression"
	apperrors "github.com/retainer-prof/pkg/errors"
)

type document struct {
	InfoTables       []infoDoc       `json:"info_tables"`
	CostCentres      []costCentreDoc `json:"cost_centres"`
	CostCentreStacks []ccsDoc        `json:"cost_centre_stacks"`
	Closures         []closureDoc    `json:"closures"`
	Roots            rootsDoc        `json:"roots"`
	Generations      []generationDoc `json:"generations"`
	StaticObjects    []uint32        `json:"static_objects"`
}

type bitmapDoc struct {
	Size  int      `json:"size"`
	Bits  uint64   `json:"bits,omitempty"`
	Words []uint64 `json:"words,omitempty"`
	// Layout is an alternative to Bits: one letter per word, 'P' for a reference.
	Layout string `json:"layout,omitempty"`
}

type funDoc struct {
	Type   string     `json:"type"`
	Arity  int        `json:"arity"`
	Bitmap *bitmapDoc `json:"bitmap,omitempty"`
	Large  *bitmapDoc `json:"large,omitempty"`
}

type infoDoc struct {
	ID       uint32     `json:"id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	NPtrs    int        `json:"nptrs"`
	NNonPtrs int        `json:"nnonptrs"`
	SRT      []uint32   `json:"srt,omitempty"`
	Fun      *funDoc    `json:"fun,omitempty"`
	Bitmap   *bitmapDoc `json:"bitmap,omitempty"`
	Large    *bitmapDoc `json:"large,omitempty"`
}

type costCentreDoc struct {
	ID     uint32 `json:"id"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

type ccsDoc struct {
	ID   uint32 `json:"id"`
	CC   uint32 `json:"cc"`
	Prev uint32 `json:"prev,omitempty"`
}

type frameDoc struct {
	Info    uint32   `json:"info"`
	Payload []uint64 `json:"payload,omitempty"`
}

type threadDoc struct {
	State string `json:"state"`
	Link  uint32 `json:"link,omitempty"`
}

type closureDoc struct {
	ID        uint32     `json:"id,omitempty"`
	Info      uint32     `json:"info"`
	Ptrs      []uint32   `json:"ptrs,omitempty"`
	Args      []uint64   `json:"args,omitempty"`
	Frames    []frameDoc `json:"frames,omitempty"`
	Thread    *threadDoc `json:"thread,omitempty"`
	BCOBitmap *bitmapDoc `json:"bco_bitmap,omitempty"`
	CCS       uint32     `json:"ccs,omitempty"`
}

type rootsDoc struct {
	Threads []uint32 `json:"threads"`
	Weak    []uint32 `json:"weak"`
	Stable  []uint32 `json:"stable"`
}

type generationDoc struct {
	MutList     []uint32 `json:"mut_list"`
	MutOnceList []uint32 `json:"mut_once_list"`
}

// Load reads a snapshot file. Files ending in .zst or .gz are decompressed
// first; the payload may be JSON or the binary encoding.
func Load(path string) (*heap.Heap, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Decode builds a heap from a JSON or binary snapshot.
func Decode(r io.Reader) (*heap.Heap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to read snapshot", err)
	}
	return parse(data)
}

// ConvertStats describes a Convert run.
type ConvertStats struct {
	Closures   int
	InputSize  int64
	BinarySize int64
	OutputSize int64
}

// Convert rewrites the snapshot at in as a binary snapshot at out,
// compressed according to out's suffix. The input must load cleanly.
func Convert(in, out string) (*ConvertStats, error) {
	data, err := readFile(in)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(data)
	if err != nil {
		return nil, err
	}
	h, err := buildValid(doc)
	if err != nil {
		return nil, err
	}

	raw := marshalBinary(doc)
	comp, err := compression.ForPath(out)
	if err != nil {
		return nil, err
	}
	defer compression.Close(comp)
	encoded, err := comp.Compress(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError,
			fmt.Sprintf("failed to %s-compress snapshot", comp.Name()), err)
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return &ConvertStats{
		Closures:   h.Len(),
		InputSize:  int64(len(data)),
		BinarySize: int64(len(raw)),
		OutputSize: int64(len(encoded)),
	}, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "failed to read snapshot", err)
	}
	comp, err := compression.ForPath(path)
	if err != nil {
		return nil, err
	}
	defer compression.Close(comp)
	data, err = comp.Decompress(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError,
			fmt.Sprintf("failed to decompress %s snapshot", comp.Name()), err)
	}
	return data, nil
}

func readDocument(data []byte) (*document, error) {
	if IsBinary(data) {
		return unmarshalBinary(data)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to decode snapshot JSON", err)
	}
	return &doc, nil
}

func parse(data []byte) (*heap.Heap, error) {
	doc, err := readDocument(data)
	if err != nil {
		return nil, err
	}
	return buildValid(doc)
}

func buildValid(doc *document) (*heap.Heap, error) {
	h, err := build(doc)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "inconsistent snapshot", err)
	}
	return h, nil
}

func build(doc *document) (*heap.Heap, error) {
	h := heap.New()

	for i, d := range doc.InfoTables {
		if d.ID != 0 && d.ID != uint32(i+1) {
			return nil, invalid("info table %d listed at position %d", d.ID, i+1)
		}
		info, err := infoTable(d)
		if err != nil {
			return nil, err
		}
		h.AddInfo(info)
	}

	for i, d := range doc.CostCentres {
		if d.ID != 0 && d.ID != uint32(i+1) {
			return nil, invalid("cost centre %d listed at position %d", d.ID, i+1)
		}
		h.AddCostCentre(&heap.CostCentre{Label: d.Label, Module: d.Module})
	}

	for i, d := range doc.CostCentreStacks {
		if d.ID != 0 && d.ID != uint32(i+1) {
			return nil, invalid("cost centre stack %d listed at position %d", d.ID, i+1)
		}
		cc := h.CostCentre(d.CC)
		if cc == nil {
			return nil, invalid("cost centre stack %d: unknown cost centre %d", i+1, d.CC)
		}
		s := &heap.CostCentreStack{CC: cc}
		if d.Prev != 0 {
			// Stacks may only extend stacks listed earlier.
			if s.Prev = h.CostCentreStack(d.Prev); s.Prev == nil {
				return nil, invalid("cost centre stack %d: unknown parent %d", i+1, d.Prev)
			}
		}
		h.AddCostCentreStack(s)
	}

	for i, d := range doc.Closures {
		if d.ID != 0 && d.ID != uint32(i+1) {
			return nil, invalid("closure %d listed at position %d", d.ID, i+1)
		}
		c, err := closure(h, d)
		if err != nil {
			return nil, fmt.Errorf("closure %d: %w", i+1, err)
		}
		h.Add(c)
	}

	h.Threads = ids(doc.Roots.Threads)
	h.Weak = ids(doc.Roots.Weak)
	h.Stable = ids(doc.Roots.Stable)
	h.StaticObjects = ids(doc.StaticObjects)
	for _, g := range doc.Generations {
		h.Generations = append(h.Generations, heap.Generation{
			MutList:     ids(g.MutList),
			MutOnceList: ids(g.MutOnceList),
		})
	}
	return h, nil
}

func infoTable(d infoDoc) (*heap.InfoTable, error) {
	kind, ok := heap.ParseKind(d.Kind)
	if !ok {
		return nil, invalid("info table %q: unknown kind %q", d.Name, d.Kind)
	}
	info := &heap.InfoTable{
		Name:     d.Name,
		Kind:     kind,
		NPtrs:    d.NPtrs,
		NNonPtrs: d.NNonPtrs,
		SRT:      ids(d.SRT),
		Bitmap:   smallBitmap(d.Bitmap),
		Large:    largeBitmap(d.Large),
	}
	if d.Fun != nil {
		t, ok := heap.ParseArgType(d.Fun.Type)
		if !ok {
			return nil, invalid("info table %q: unknown argument type %q", d.Name, d.Fun.Type)
		}
		info.Fun = &heap.FunInfo{
			Type:   t,
			Arity:  d.Fun.Arity,
			Bitmap: smallBitmap(d.Fun.Bitmap),
			Large:  largeBitmap(d.Fun.Large),
		}
	}
	return info, nil
}

func closure(h *heap.Heap, d closureDoc) (*heap.Closure, error) {
	info := h.Info(d.Info)
	if info == nil {
		return nil, invalid("unknown info table %d", d.Info)
	}
	c := &heap.Closure{
		Info:      info,
		Ptrs:      ids(d.Ptrs),
		Args:      words(d.Args),
		BCOBitmap: largeBitmap(d.BCOBitmap),
	}
	if d.CCS != 0 {
		if c.CCS = h.CostCentreStack(d.CCS); c.CCS == nil {
			return nil, invalid("unknown cost centre stack %d", d.CCS)
		}
	}
	for _, f := range d.Frames {
		fi := h.Info(f.Info)
		if fi == nil {
			return nil, invalid("frame: unknown info table %d", f.Info)
		}
		c.Stack = append(c.Stack, heap.Frame{Info: fi, Payload: words(f.Payload)})
	}
	if d.Thread != nil {
		state, ok := heap.ParseThreadState(d.Thread.State)
		if !ok {
			return nil, invalid("unknown thread state %q", d.Thread.State)
		}
		c.Thread = &heap.Thread{State: state, Link: heap.ClosureID(d.Thread.Link)}
	}
	return c, nil
}

func smallBitmap(d *bitmapDoc) heap.SmallBitmap {
	if d == nil {
		return heap.SmallBitmap{}
	}
	if d.Layout != "" {
		return heap.BitmapFromPattern(d.Layout)
	}
	return heap.SmallBitmap{Size: d.Size, Bits: d.Bits}
}

func largeBitmap(d *bitmapDoc) *heap.LargeBitmap {
	if d == nil {
		return nil
	}
	return heap.NewLargeBitmap(d.Size, d.Words)
}

func ids(in []uint32) []heap.ClosureID {
	if len(in) == 0 {
		return nil
	}
	out := make([]heap.ClosureID, len(in))
	for i, id := range in {
		out[i] = heap.ClosureID(id)
	}
	return out
}

func words(in []uint64) []heap.Word {
	if len(in) == 0 {
		return nil
	}
	out := make([]heap.Word, len(in))
	for i, w := range in {
		out[i] = heap.Word(w)
	}
	return out
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.CodeInvalidInput, format, args...)
}
