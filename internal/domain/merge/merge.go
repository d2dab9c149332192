// Package merge joins a live snapshot with auxiliary per-model tables.
package merge

import (
	"sort"

	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/model"
)

// SourceStats counts join results for one auxiliary table.
type SourceStats struct {
	Source    string `json:"source"`
	Rows      int    `json:"rows"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
}

// Input is one auxiliary table and how to resolve its raw names.
type Input struct {
	Table  model.AuxTable
	Source identity.Source
}

// Merge resolves the identity of every live record and of every auxiliary
// row, then copies auxiliary signals onto matching live records.
//
// The live snapshot is not modified and no live record is dropped. When
// several tables supply the same field, the earlier table wins. Within one
// table, rows resolving to the same key are folded in sorted raw-name order,
// first non-nil value per field.
func Merge(r *identity.Resolver, live *model.Snapshot, inputs ...Input) (*model.Snapshot, []SourceStats) {
	if live == nil {
		return nil, nil
	}
	out := live.Clone()
	for i := range out.Records {
		rec := &out.Records[i]
		raw := rec.ModelID
		if raw == "" {
			raw = rec.Key
		}
		rec.Key = r.Resolve(identity.SourceArena, raw)
		if rec.DisplayName == "" {
			rec.DisplayName = identity.DisplayName(raw)
		}
	}

	stats := make([]SourceStats, 0, len(inputs))
	for _, in := range inputs {
		index := fold(r, in)
		st := SourceStats{Source: in.Table.Source, Rows: in.Table.Len()}
		for i := range out.Records {
			aux, ok := index[out.Records[i].Key]
			if !ok {
				st.Unmatched++
				continue
			}
			st.Matched++
			apply(&out.Records[i], aux)
		}
		stats = append(stats, st)
	}
	return out, stats
}

// fold indexes a table by canonical key.
func fold(r *identity.Resolver, in Input) map[string]model.AuxRecord {
	raws := make([]string, 0, len(in.Table.Rows))
	for raw := range in.Table.Rows {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	index := make(map[string]model.AuxRecord, len(raws))
	for _, raw := range raws {
		row := in.Table.Rows[raw]
		if row.Empty() {
			continue
		}
		key := r.Resolve(in.Source, raw)
		acc, ok := index[key]
		if !ok {
			acc = model.AuxRecord{RawName: raw}
		}
		fillAux(&acc, row)
		index[key] = acc
	}
	return index
}

func fillAux(dst *model.AuxRecord, src model.AuxRecord) {
	if dst.PriceInput == nil {
		dst.PriceInput = src.PriceInput
	}
	if dst.PriceOutput == nil {
		dst.PriceOutput = src.PriceOutput
	}
	if dst.UsageRank == nil {
		dst.UsageRank = src.UsageRank
	}
	if dst.UsageTokens == nil {
		dst.UsageTokens = src.UsageTokens
	}
	if dst.Speed == nil {
		dst.Speed = src.Speed
	}
	if dst.ContextLength == nil {
		dst.ContextLength = src.ContextLength
	}
	if dst.CreatedAt == nil {
		dst.CreatedAt = src.CreatedAt
	}
}

// apply copies signals the record does not have yet.
func apply(rec *model.ModelRecord, aux model.AuxRecord) {
	if rec.PriceInput == nil {
		rec.PriceInput = aux.PriceInput
	}
	if rec.PriceOutput == nil {
		rec.PriceOutput = aux.PriceOutput
	}
	if rec.UsageRank == nil {
		rec.UsageRank = aux.UsageRank
	}
	if rec.UsageTokens == nil {
		rec.UsageTokens = aux.UsageTokens
	}
	if rec.Speed == nil {
		rec.Speed = aux.Speed
	}
	if rec.ContextLength == nil {
		rec.ContextLength = aux.ContextLength
	}
	if rec.CreatedAt == nil {
		rec.CreatedAt = aux.CreatedAt
	}
}
