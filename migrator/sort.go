package migrator

import (
	"sort"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/schema"
)

// phases order in which action types run, constraints go before the tables they hang on and
// indexes after the columns they cover
var phases = map[ActionType]int{
	DropForeignKey: 0,
	DropIndex:      1,
	DropTable:      2,
	CreateTable:    3,
	AddColumn:      4,
	AlterColumn:    5,
	DropColumn:     6,
	AddForeignKey:  7,
	CreateIndex:    8,
}

// Sort orders actions by phase, keeping the diff order inside a phase. Created tables come
// referenced first and dropped tables referrer first
func Sort(actions []Action) []Action {
	sorted := append([]Action(nil), actions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return phases[sorted[i].Type] < phases[sorted[j].Type]
	})

	for _, typ := range []ActionType{CreateTable, DropTable} {
		start, end := phaseBounds(sorted, typ)
		ordered := orderTables(sorted[start:end])
		if typ == DropTable {
			for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
		copy(sorted[start:end], ordered)
	}
	return sorted
}

func phaseBounds(actions []Action, typ ActionType) (start, end int) {
	start = sort.Search(len(actions), func(i int) bool { return phases[actions[i].Type] >= phases[typ] })
	end = sort.Search(len(actions), func(i int) bool { return phases[actions[i].Type] > phases[typ] })
	return start, end
}

// orderTables table actions with the tables they reference first, references outside of the
// group and self references are ignored, a cycle leaves the rest in diff order
func orderTables(actions []Action) []Action {
	var (
		ordered = make([]Action, 0, len(actions))
		placed  = make(map[string]bool, len(actions))
		inGroup = make(map[string]bool, len(actions))
	)
	for _, a := range actions {
		inGroup[cache.FoldKey(a.Table.Name)] = true
	}

	ready := func(table *schema.Table) bool {
		for _, fk := range table.ForeignKeys {
			ref := cache.FoldKey(fk.ReferencedTable)
			if ref != cache.FoldKey(table.Name) && inGroup[ref] && !placed[ref] {
				return false
			}
		}
		return true
	}

	for len(ordered) < len(actions) {
		progressed := false
		for _, a := range actions {
			name := cache.FoldKey(a.Table.Name)
			if !placed[name] && ready(a.Table) {
				placed[name] = true
				ordered = append(ordered, a)
				progressed = true
			}
		}
		if !progressed {
			for _, a := range actions {
				if name := cache.FoldKey(a.Table.Name); !placed[name] {
					placed[name] = true
					ordered = append(ordered, a)
				}
			}
		}
	}
	return ordered
}
