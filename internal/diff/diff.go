package diff

import (
	"fmt"
	"sort"
	"strings"

	"ddl-alterator/internal/compat"
	"ddl-alterator/internal/position"
	"ddl-alterator/internal/schema"
)

// DefaultIgnoredProperties are catalog properties engines set on their own;
// their absence from the DDL is not reported as a removal. Entries ending
// in '*' match by prefix.
var DefaultIgnoredProperties = []string{
	"write.parquet.compression-codec",
	"write.object-storage.*",
	"write.data.path",
	"write.metadata.path",
	"engine.hive.enabled",
	"created-at",
	"EXTERNAL",
	"transient_lastDdlTime",
	"table_type",
	"metadata_location",
	"previous_metadata_location",
}

type Options struct {
	Table             string
	Migration         bool
	Force             bool
	Engine            compat.Engine
	NormalizeTypes    bool
	// FoldAliases treats alias spellings such as integer and int as the
	// same type while keeping the DDL spelling for updates.
	FoldAliases       bool
	IgnoredProperties []string
}

type Rename struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
	OldType string `json:"old_type,omitempty"`
	NewType string `json:"new_type,omitempty"`
}

type Updated struct {
	Compatible      []compat.TypeChange `json:"compatible,omitempty"`
	Incompatible    []compat.TypeChange `json:"incompatible,omitempty"`
	PositionChanges []position.Change   `json:"position_changes,omitempty"`
}

type ColumnChanges struct {
	New     []schema.Column `json:"new,omitempty"`
	Dropped []string        `json:"dropped,omitempty"`
	Renamed []Rename        `json:"renamed,omitempty"`
	Updated Updated         `json:"updated"`
}

type PartitionReplace struct {
	FieldID int    `json:"field-id"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type PartitionChanges struct {
	New      []schema.PartitionColumn `json:"new,omitempty"`
	Dropped  []string                 `json:"dropped,omitempty"`
	Replaced []PartitionReplace       `json:"replaced,omitempty"`
}

type PropertyChanges struct {
	New     map[string]string `json:"new,omitempty"`
	Removed []string          `json:"removed,omitempty"`
	Updated map[string]string `json:"updated,omitempty"`
}

// Result is the structured difference between a catalog snapshot and a DDL snapshot.
type Result struct {
	Table            string           `json:"table"`
	Columns          ColumnChanges    `json:"columns"`
	Partitions       PartitionChanges `json:"partition_columns"`
	Properties       PropertyChanges  `json:"tblprops"`
	Migration        bool             `json:"migration"`
	SequenceMismatch bool             `json:"sequence_mismatch,omitempty"`

	// Add and Delete form the column update to send to the catalog.
	Add    []schema.Column `json:"-"`
	Delete []schema.Column `json:"-"`
}

// Empty reports whether the comparison found no difference at all.
func (r *Result) Empty() bool {
	c, p, t := r.Columns, r.Partitions, r.Properties
	return !r.SequenceMismatch &&
		len(c.New) == 0 && len(c.Dropped) == 0 && len(c.Renamed) == 0 &&
		len(c.Updated.Compatible) == 0 && len(c.Updated.Incompatible) == 0 && len(c.Updated.PositionChanges) == 0 &&
		len(p.New) == 0 && len(p.Dropped) == 0 && len(p.Replaced) == 0 &&
		len(t.New) == 0 && len(t.Removed) == 0 && len(t.Updated) == 0
}

// HasColumnUpdates reports whether the catalog needs a column update.
func (r *Result) HasColumnUpdates() bool {
	return len(r.Add) > 0 || len(r.Delete) > 0 || len(r.Columns.Renamed) > 0 || len(r.Columns.Updated.PositionChanges) > 0
}

// MissingBackfillError is returned when incompatible type changes are not
// backed by a backfilled_from annotation and force is not set.
type MissingBackfillError struct {
	Table        string
	Compatible   []compat.TypeChange
	Incompatible []compat.TypeChange
}

func (e *MissingBackfillError) Error() string {
	names := make([]string, 0, len(e.Incompatible))
	for _, c := range e.Incompatible {
		if c.BackfilledFrom == "" {
			names = append(names, fmt.Sprintf("%s (%s -> %s)", c.Name, c.OldType, c.NewType))
		}
	}
	return fmt.Sprintf("%s: incompatible type changes without backfill: %s", e.Table, strings.Join(names, ", "))
}

// Compare diffs the catalog snapshot against the DDL snapshot.
func Compare(cat, ddl schema.Snapshot, opts Options) (*Result, error) {
	if opts.NormalizeTypes {
		cat, ddl = cat.Normalized(), ddl.Normalized()
	}
	res := &Result{Table: opts.Table, Migration: opts.Migration}

	if opts.Migration && sequenceMismatch(cat.Columns, ddl.ActiveColumns()) {
		res.SequenceMismatch = true
		return res, nil
	}

	if err := compareColumns(cat, ddl, opts, res); err != nil {
		return nil, err
	}
	comparePartitions(cat.ActivePartitions(), ddl.ActivePartitions(), res)
	compareProperties(cat.Properties, ddl.Properties, opts, res)
	return res, nil
}

// sequenceMismatch reports whether the DDL column names, in declaration
// order, differ from the catalog's column order.
func sequenceMismatch(cat, ddl []schema.Column) bool {
	if len(cat) != len(ddl) {
		return true
	}
	for i := range cat {
		if cat[i].Key() != ddl[i].Key() {
			return true
		}
	}
	return false
}

func compareColumns(cat, ddl schema.Snapshot, opts Options, res *Result) error {
	catByKey := make(map[string]schema.Column, len(cat.Columns))
	for _, c := range cat.Columns {
		catByKey[c.Key()] = c
	}
	active := ddl.ActiveColumns()
	inDDL := make(map[string]bool, len(active))
	for _, c := range active {
		inDDL[c.Key()] = true
	}

	// renameSources maps a catalog column to the DDL column renamed from it;
	// the first DDL column claiming a source wins.
	renameSources := make(map[string]string)
	backfillSources := make(map[string]bool)
	for _, c := range active {
		if c.BackfilledFrom != "" {
			backfillSources[strings.ToLower(c.BackfilledFrom)] = true
		}
		src := strings.ToLower(c.RenamedFrom)
		if src == "" || inDDL[src] || renameSources[src] != "" {
			continue
		}
		if _, exists := catByKey[c.Key()]; exists {
			continue
		}
		if _, exists := catByKey[src]; exists {
			renameSources[src] = c.Key()
		}
	}

	var (
		typeChanges []compat.TypeChange
		requests    []position.Request
		renameTypes []compat.TypeChange
	)
	for _, c := range active {
		old, exists := catByKey[c.Key()]
		switch {
		case exists:
			if !sameType(old.Type, c.Type, opts) {
				typeChanges = append(typeChanges, compat.TypeChange{
					Name: c.Name, OldType: old.Type, NewType: c.Type, BackfilledFrom: c.BackfilledFrom,
				})
				continue
			}
			if c.HasPosition() {
				requests = append(requests, position.Request{Column: c.Name, After: c.After, First: c.First})
			}
		case c.RenamedFrom != "" && renameSources[strings.ToLower(c.RenamedFrom)] == c.Key():
			src := catByKey[strings.ToLower(c.RenamedFrom)]
			res.Columns.Renamed = append(res.Columns.Renamed, Rename{
				OldName: src.Name, NewName: c.Name, OldType: src.Type, NewType: c.Type,
			})
			if !sameType(src.Type, c.Type, opts) {
				renameTypes = append(renameTypes, compat.TypeChange{
					Name: c.Name, OldType: src.Type, NewType: c.Type, BackfilledFrom: c.BackfilledFrom,
				})
			} else if c.HasPosition() {
				requests = append(requests, position.Request{Column: c.Name, After: c.After, First: c.First})
			}
		case backfillSources[c.Key()]:
		default:
			res.Columns.New = append(res.Columns.New, c)
			if c.HasPosition() {
				requests = append(requests, position.Request{Column: c.Name, After: c.After, First: c.First})
			}
		}
	}

	for _, c := range cat.Columns {
		if _, renamed := renameSources[c.Key()]; !inDDL[c.Key()] && !renamed {
			res.Columns.Dropped = append(res.Columns.Dropped, c.Name)
		}
	}

	_, compatible, incompatible, err := compat.Classify(typeChanges, opts.Engine)
	if err != nil {
		return err
	}
	_, _, renameIncompatible, err := compat.Classify(renameTypes, opts.Engine)
	if err != nil {
		return err
	}
	res.Columns.Updated.Compatible = compatible
	res.Columns.Updated.Incompatible = incompatible

	if !opts.Force {
		unsafe := append(append([]compat.TypeChange{}, incompatible...), renameIncompatible...)
		for _, c := range unsafe {
			if c.BackfilledFrom == "" {
				return &MissingBackfillError{Table: opts.Table, Compatible: compatible, Incompatible: unsafe}
			}
		}
	}

	for _, c := range compatible {
		res.Add = append(res.Add, schema.Column{Name: c.Name, Type: c.NewType})
	}
	for _, c := range incompatible {
		res.Add = append(res.Add, schema.Column{Name: c.Name, Type: c.NewType})
	}
	for _, c := range res.Columns.New {
		res.Add = append(res.Add, schema.Column{Name: c.Name, Type: c.Type})
	}
	for _, name := range res.Columns.Dropped {
		res.Delete = append(res.Delete, schema.Column{Name: name, Type: catByKey[strings.ToLower(name)].Type})
	}

	if len(requests) == 0 {
		return nil
	}
	changes, err := position.Resolve(orderAfterUpdate(cat.Columns, res), requests)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Table, err)
	}
	res.Columns.Updated.PositionChanges = changes
	return nil
}

func sameType(old, new string, opts Options) bool {
	if old == new {
		return true
	}
	return opts.FoldAliases && schema.FoldType(old) == schema.FoldType(new)
}

// orderAfterUpdate is the column order the catalog holds once renames,
// drops and additions are applied, before any move.
func orderAfterUpdate(cat []schema.Column, res *Result) []string {
	renamed := make(map[string]string, len(res.Columns.Renamed))
	for _, r := range res.Columns.Renamed {
		renamed[strings.ToLower(r.OldName)] = r.NewName
	}
	dropped := make(map[string]bool, len(res.Columns.Dropped))
	for _, d := range res.Columns.Dropped {
		dropped[strings.ToLower(d)] = true
	}
	var order []string
	for _, c := range cat {
		switch {
		case dropped[c.Key()]:
		case renamed[c.Key()] != "":
			order = append(order, renamed[c.Key()])
		default:
			order = append(order, c.Name)
		}
	}
	for _, c := range res.Columns.New {
		order = append(order, c.Name)
	}
	return order
}

func comparePartitions(cat, ddl []schema.PartitionColumn, res *Result) {
	catByID := make(map[int]schema.PartitionColumn, len(cat))
	for _, p := range cat {
		catByID[p.FieldID] = p
	}
	ddlByID := make(map[int]schema.PartitionColumn, len(ddl))
	for _, p := range ddl {
		ddlByID[p.FieldID] = p
		old, ok := catByID[p.FieldID]
		switch {
		case !ok:
			res.Partitions.New = append(res.Partitions.New, p)
		case !strings.EqualFold(old.Name, p.Name):
			res.Partitions.Replaced = append(res.Partitions.Replaced, PartitionReplace{
				FieldID: p.FieldID, OldName: old.Name, NewName: p.Name,
			})
		}
	}
	for _, p := range cat {
		if _, ok := ddlByID[p.FieldID]; !ok {
			res.Partitions.Dropped = append(res.Partitions.Dropped, p.Name)
		}
	}
	sort.Slice(res.Partitions.New, func(i, j int) bool {
		return res.Partitions.New[i].FieldID < res.Partitions.New[j].FieldID
	})
}

func compareProperties(cat, ddl schema.Properties, opts Options, res *Result) {
	if opts.Migration {
		if len(ddl) > 0 {
			res.Properties.New = copyProps(ddl)
		}
		return
	}
	ignored := opts.IgnoredProperties
	if ignored == nil {
		ignored = DefaultIgnoredProperties
	}
	for k, v := range ddl {
		old, ok := cat[k]
		switch {
		case !ok:
			if res.Properties.New == nil {
				res.Properties.New = map[string]string{}
			}
			res.Properties.New[k] = v
		case old != v:
			if res.Properties.Updated == nil {
				res.Properties.Updated = map[string]string{}
			}
			res.Properties.Updated[k] = v
		}
	}
	for k := range cat {
		if _, ok := ddl[k]; !ok && !isIgnored(k, ignored) {
			res.Properties.Removed = append(res.Properties.Removed, k)
		}
	}
	sort.Strings(res.Properties.Removed)
}

func isIgnored(key string, ignored []string) bool {
	for _, pattern := range ignored {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
			continue
		}
		if key == pattern {
			return true
		}
	}
	return false
}

func copyProps(p schema.Properties) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
