package cmd

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/binload/go/loader"
)

type sectionList []loader.Section

func (s sectionList) Len() int           { return len(s) }
func (s sectionList) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s sectionList) Less(i, j int) bool { return sortorder.NaturalLess(s[i].Name(), s[j].Name()) }

type symbolList []loader.Symbol

func (s symbolList) Len() int           { return len(s) }
func (s symbolList) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s symbolList) Less(i, j int) bool { return sortorder.NaturalLess(s[i].Name, s[j].Name) }

// SortSections orders sections by name, with digit runs compared numerically.
// Equal names keep their load order.
func SortSections(secs []loader.Section) {
	sort.Stable(sectionList(secs))
}

func SortSymbols(syms []loader.Symbol) {
	sort.Stable(symbolList(syms))
}
