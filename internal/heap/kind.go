package heap

import "strings"

// Kind is the closed enumeration of closure and stack-frame kinds.
type Kind uint8

const (
	KindInvalid Kind = iota

	// constructors
	KindConstr
	KindConstr10
	KindConstr01
	KindConstr20
	KindConstr11
	KindConstr02
	KindConstrStatic
	KindConstrIntlike
	KindConstrCharlike
	KindConstrNoCAFStatic

	// functions
	KindFun
	KindFun10
	KindFun01
	KindFun20
	KindFun11
	KindFun02
	KindFunStatic

	// thunks
	KindThunk
	KindThunk10
	KindThunk01
	KindThunk20
	KindThunk11
	KindThunk02
	KindThunkStatic
	KindThunkSelector

	// applications
	KindBCO
	KindAP
	KindPAP
	KindAPStack

	// indirections
	KindInd
	KindIndStatic
	KindIndPerm
	KindIndOldGen
	KindIndOldGenPerm

	// black holes
	KindCAFBlackhole
	KindBlackhole
	KindSEBlackhole
	KindSECAFBlackhole
	KindBlackholeBQ

	// mutable and misc objects
	KindMVar
	KindMutVar
	KindMutCons
	KindMutArrPtrs
	KindMutArrPtrsFrozen
	KindArrWords
	KindWeak
	KindForeign
	KindStableName
	KindTSO

	// stack frames
	KindUpdateFrame
	KindCatchFrame
	KindStopFrame
	KindRetDyn
	KindRetBCO
	KindRetSmall
	KindRetVecSmall
	KindRetBig
	KindRetVecBig
	KindRetFun

	// placeholders that never belong to a live heap
	KindBlockedFetch
	KindFetchMe
	KindFetchMeBQ
	KindRBH
	KindRemoteRef
	KindEvacuated

	numKinds
)

var kindNames = [numKinds]string{
	KindInvalid:           "INVALID_OBJECT",
	KindConstr:            "CONSTR",
	KindConstr10:          "CONSTR_1_0",
	KindConstr01:          "CONSTR_0_1",
	KindConstr20:          "CONSTR_2_0",
	KindConstr11:          "CONSTR_1_1",
	KindConstr02:          "CONSTR_0_2",
	KindConstrStatic:      "CONSTR_STATIC",
	KindConstrIntlike:     "CONSTR_INTLIKE",
	KindConstrCharlike:    "CONSTR_CHARLIKE",
	KindConstrNoCAFStatic: "CONSTR_NOCAF_STATIC",
	KindFun:               "FUN",
	KindFun10:             "FUN_1_0",
	KindFun01:             "FUN_0_1",
	KindFun20:             "FUN_2_0",
	KindFun11:             "FUN_1_1",
	KindFun02:             "FUN_0_2",
	KindFunStatic:         "FUN_STATIC",
	KindThunk:             "THUNK",
	KindThunk10:           "THUNK_1_0",
	KindThunk01:           "THUNK_0_1",
	KindThunk20:           "THUNK_2_0",
	KindThunk11:           "THUNK_1_1",
	KindThunk02:           "THUNK_0_2",
	KindThunkStatic:       "THUNK_STATIC",
	KindThunkSelector:     "THUNK_SELECTOR",
	KindBCO:               "BCO",
	KindAP:                "AP",
	KindPAP:               "PAP",
	KindAPStack:           "AP_STACK",
	KindInd:               "IND",
	KindIndStatic:         "IND_STATIC",
	KindIndPerm:           "IND_PERM",
	KindIndOldGen:         "IND_OLDGEN",
	KindIndOldGenPerm:     "IND_OLDGEN_PERM",
	KindCAFBlackhole:      "CAF_BLACKHOLE",
	KindBlackhole:         "BLACKHOLE",
	KindSEBlackhole:       "SE_BLACKHOLE",
	KindSECAFBlackhole:    "SE_CAF_BLACKHOLE",
	KindBlackholeBQ:       "BLACKHOLE_BQ",
	KindMVar:              "MVAR",
	KindMutVar:            "MUT_VAR",
	KindMutCons:           "MUT_CONS",
	KindMutArrPtrs:        "MUT_ARR_PTRS",
	KindMutArrPtrsFrozen:  "MUT_ARR_PTRS_FROZEN",
	KindArrWords:          "ARR_WORDS",
	KindWeak:              "WEAK",
	KindForeign:           "FOREIGN",
	KindStableName:        "STABLE_NAME",
	KindTSO:               "TSO",
	KindUpdateFrame:       "UPDATE_FRAME",
	KindCatchFrame:        "CATCH_FRAME",
	KindStopFrame:         "STOP_FRAME",
	KindRetDyn:            "RET_DYN",
	KindRetBCO:            "RET_BCO",
	KindRetSmall:          "RET_SMALL",
	KindRetVecSmall:       "RET_VEC_SMALL",
	KindRetBig:            "RET_BIG",
	KindRetVecBig:         "RET_VEC_BIG",
	KindRetFun:            "RET_FUN",
	KindBlockedFetch:      "BLOCKED_FETCH",
	KindFetchMe:           "FETCH_ME",
	KindFetchMeBQ:         "FETCH_ME_BQ",
	KindRBH:               "RBH",
	KindRemoteRef:         "REMOTE_REF",
	KindEvacuated:         "EVACUATED",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

// String returns the upper-case tag name, e.g. "THUNK_1_0".
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "UNKNOWN_KIND"
}

// ParseKind resolves a tag name case-insensitively.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[strings.ToUpper(name)]
	return k, ok
}

// IsFrame reports whether k tags a stack activation frame.
func (k Kind) IsFrame() bool {
	return k >= KindUpdateFrame && k <= KindRetFun
}

// IsStatic reports whether k tags a statically allocated object.
func (k Kind) IsStatic() bool {
	switch k {
	case KindConstrStatic, KindConstrIntlike, KindConstrCharlike, KindConstrNoCAFStatic,
		KindFunStatic, KindThunkStatic, KindIndStatic:
		return true
	}
	return false
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}
