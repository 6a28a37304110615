package retainer

import (
	"fmt"
	"strings"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainerset"
)

// Scheme is the retainer function R(c) together with a way to render its
// values.
type Scheme interface {
	Name() string
	RetainerOf(c *heap.Closure) retainerset.Retainer
	Describe(h *heap.Heap, r retainerset.Retainer) string
}

// Scheme names accepted by SchemeByName.
const (
	SchemeInfo = "info"
	SchemeCCS  = "ccs"
	SchemeCC   = "cc"
)

// SchemeByName returns the scheme registered under name.
func SchemeByName(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case SchemeInfo, "":
		return InfoScheme{}, nil
	case SchemeCCS:
		return CCSScheme{}, nil
	case SchemeCC:
		return CCScheme{}, nil
	}
	return nil, fmt.Errorf("unknown retainer scheme %q", name)
}

const systemLabel = "SYSTEM"

// InfoScheme attributes a retainer to its info table.
type InfoScheme struct{}

func (InfoScheme) Name() string { return SchemeInfo }

func (InfoScheme) RetainerOf(c *heap.Closure) retainerset.Retainer {
	return retainerset.Retainer(c.Info.ID)
}

func (InfoScheme) Describe(h *heap.Heap, r retainerset.Retainer) string {
	if r == retainerset.System {
		return systemLabel
	}
	if info := h.Info(uint32(r)); info != nil {
		return info.String()
	}
	return fmt.Sprintf("info#%d", r)
}

// CCSScheme attributes a retainer to its cost-centre stack. Closures
// without one are attributed to SYSTEM.
type CCSScheme struct{}

func (CCSScheme) Name() string { return SchemeCCS }

func (CCSScheme) RetainerOf(c *heap.Closure) retainerset.Retainer {
	if c.CCS == nil {
		return retainerset.System
	}
	return retainerset.Retainer(c.CCS.ID)
}

func (CCSScheme) Describe(h *heap.Heap, r retainerset.Retainer) string {
	if r == retainerset.System {
		return systemLabel
	}
	if s := h.CostCentreStack(uint32(r)); s != nil {
		return s.String()
	}
	return fmt.Sprintf("ccs#%d", r)
}

// CCScheme attributes a retainer to the cost centre heading its stack.
type CCScheme struct{}

func (CCScheme) Name() string { return SchemeCC }

func (CCScheme) RetainerOf(c *heap.Closure) retainerset.Retainer {
	if c.CCS == nil || c.CCS.CC == nil {
		return retainerset.System
	}
	return retainerset.Retainer(c.CCS.CC.ID)
}

func (CCScheme) Describe(h *heap.Heap, r retainerset.Retainer) string {
	if r == retainerset.System {
		return systemLabel
	}
	if cc := h.CostCentre(uint32(r)); cc != nil {
		return cc.String()
	}
	return fmt.Sprintf("cc#%d", r)
}
