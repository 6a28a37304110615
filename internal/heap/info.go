package heap

import (
	"fmt"

	"github.com/retainer-prof/pkg/collections"
)

// Word is one payload word. Whether it holds a closure reference is
// decided by the layout describing the region it belongs to.
type Word uint64

// Ref encodes a closure reference as a payload word.
func Ref(id ClosureID) Word {
	return Word(id)
}

// ID decodes a payload word as a closure reference.
func (w Word) ID() ClosureID {
	return ClosureID(w)
}

// SmallBitmapBits is the widest region a SmallBitmap can describe.
const SmallBitmapBits = 64

// SmallBitmap describes up to 64 payload words. Bit i set means word i
// is a live reference.
type SmallBitmap struct {
	Size int
	Bits uint64
}

// Live reports whether word i is a reference.
func (b SmallBitmap) Live(i int) bool {
	return i >= 0 && i < b.Size && i < SmallBitmapBits && b.Bits&(1<<uint(i)) != 0
}

// LargeBitmap describes a region wider than a machine word.
type LargeBitmap struct {
	bits *collections.Bitset
}

// NewLargeBitmap builds a large bitmap of size bits over words.
func NewLargeBitmap(size int, words []uint64) *LargeBitmap {
	return &LargeBitmap{bits: collections.NewBitsetFromWords(size, words)}
}

// Size returns the number of payload words described.
func (b *LargeBitmap) Size() int {
	if b == nil {
		return 0
	}
	return b.bits.Size()
}

// Live reports whether word i is a reference.
func (b *LargeBitmap) Live(i int) bool {
	return b != nil && i < b.bits.Size() && b.bits.Test(i)
}

// Words returns the backing words.
func (b *LargeBitmap) Words() []uint64 {
	if b == nil {
		return nil
	}
	return b.bits.Words()
}

// BitmapFromPattern builds a small bitmap from a layout string where 'P'
// marks a reference and any other letter a non-reference word.
func BitmapFromPattern(pattern string) SmallBitmap {
	b := SmallBitmap{Size: len(pattern)}
	for i, ch := range pattern {
		if ch == 'P' || ch == 'p' {
			b.Bits |= 1 << uint(i)
		}
	}
	return b
}

// ArgType is a function's argument-passing convention.
type ArgType uint8

const (
	ArgGen    ArgType = iota // small bitmap in the function's info table
	ArgGenBig                // large bitmap in the function's info table
	ArgBCO                   // bitmap of the byte-code object itself
	ArgNone
	ArgN
	ArgP
	ArgF
	ArgD
	ArgL
	ArgNN
	ArgNP
	ArgPN
	ArgPP
	ArgNNN
	ArgNNP
	ArgNPN
	ArgNPP
	ArgPNN
	ArgPNP
	ArgPPN
	ArgPPP
	ArgPPPP
	ArgPPPPP
	ArgPPPPPP

	numArgTypes
)

var argTypeNames = [numArgTypes]string{
	ArgGen: "ARG_GEN", ArgGenBig: "ARG_GEN_BIG", ArgBCO: "ARG_BCO",
	ArgNone: "ARG_NONE", ArgN: "ARG_N", ArgP: "ARG_P", ArgF: "ARG_F",
	ArgD: "ARG_D", ArgL: "ARG_L", ArgNN: "ARG_NN", ArgNP: "ARG_NP",
	ArgPN: "ARG_PN", ArgPP: "ARG_PP", ArgNNN: "ARG_NNN", ArgNNP: "ARG_NNP",
	ArgNPN: "ARG_NPN", ArgNPP: "ARG_NPP", ArgPNN: "ARG_PNN", ArgPNP: "ARG_PNP",
	ArgPPN: "ARG_PPN", ArgPPP: "ARG_PPP", ArgPPPP: "ARG_PPPP",
	ArgPPPPP: "ARG_PPPPP", ArgPPPPPP: "ARG_PPPPPP",
}

// stdArgBitmaps holds the layouts of the standard conventions.
var stdArgBitmaps = func() [numArgTypes]SmallBitmap {
	var out [numArgTypes]SmallBitmap
	for t := ArgNone; t < numArgTypes; t++ {
		if t == ArgNone {
			continue
		}
		out[t] = BitmapFromPattern(argTypeNames[t][len("ARG_"):])
	}
	return out
}()

func (t ArgType) String() string {
	if t < numArgTypes {
		return argTypeNames[t]
	}
	return fmt.Sprintf("ARG_TYPE(%d)", uint8(t))
}

// IsStandard reports whether t has a fixed layout independent of the function.
func (t ArgType) IsStandard() bool {
	return t >= ArgNone && t < numArgTypes
}

// StdArgBitmap returns the layout of a standard convention.
func StdArgBitmap(t ArgType) (SmallBitmap, bool) {
	if !t.IsStandard() {
		return SmallBitmap{}, false
	}
	return stdArgBitmaps[t], true
}

// ParseArgType resolves a name such as "ARG_PP".
func ParseArgType(name string) (ArgType, bool) {
	for t, n := range argTypeNames {
		if n == name {
			return ArgType(t), true
		}
	}
	return 0, false
}

// FunInfo describes how a function takes its arguments.
type FunInfo struct {
	Type   ArgType
	Arity  int
	Bitmap SmallBitmap  // ArgGen
	Large  *LargeBitmap // ArgGenBig
}

// InfoTable is the static layout shared by closures or frames of one kind.
type InfoTable struct {
	ID       uint32
	Name     string
	Kind     Kind
	NPtrs    int
	NNonPtrs int

	// SRT is the auxiliary reference table of functions, thunks and frames.
	SRT []ClosureID

	// Fun is set for function kinds.
	Fun *FunInfo

	// Frame layouts.
	Bitmap SmallBitmap
	Large  *LargeBitmap
}

func (i *InfoTable) String() string {
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("%s#%d", i.Kind, i.ID)
}
