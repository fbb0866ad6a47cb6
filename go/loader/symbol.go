package loader

type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolUnknown
)

func (k SymbolKind) String() string {
	if k == SymbolFunction {
		return "FUNC"
	}
	return ""
}

type Symbol struct {
	Name string
	Addr uint64
	Kind SymbolKind
}
