package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/compat"
	"ddl-alterator/internal/diff"
	"ddl-alterator/internal/position"
	"ddl-alterator/internal/rules"
	"ddl-alterator/internal/schema"

	"go.uber.org/zap"
)

const AccountIDPlaceholder = "{aws_account_id}"

// Fetcher downloads documents such as Iceberg metadata and DDL files.
type Fetcher interface {
	Download(ctx context.Context, URL string) ([]byte, error)
}

type Options struct {
	Validate       bool
	Force          bool
	Engine         compat.Engine
	AccountID      string
	IcebergCatalog string
	Rules          []rules.Rule
}

// File is one DDL document to reconcile.
type File struct {
	Name string
	DDL  string
}

// Alterator reconciles DDL files against a catalog, one table at a time.
type Alterator struct {
	catalog catalog.Catalog
	fetcher Fetcher
	log     *zap.Logger
	opts    Options
}

func New(cat catalog.Catalog, fetcher Fetcher, log *zap.Logger, opts Options) *Alterator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Engine == "" {
		opts.Engine = compat.Athena
	}
	if opts.Rules == nil {
		opts.Rules = rules.Default
	}
	if opts.IcebergCatalog == "" {
		opts.IcebergCatalog = "spark_catalog"
	}
	return &Alterator{catalog: cat, fetcher: fetcher, log: log, opts: opts}
}

// mode selects how the two sides are extracted and compared.
type mode int

const (
	hiveMode mode = iota
	migrationMode
	icebergMode
)

func (m mode) String() string {
	switch m {
	case migrationMode:
		return "migration"
	case icebergMode:
		return "iceberg"
	default:
		return "hive"
	}
}

func skipped(o Outcome, reason SkipReason) Outcome {
	o.Status = StatusSkipped
	o.Reason = reason
	return o
}

func failed(o Outcome, code string, err error) Outcome {
	o.Status = StatusError
	o.Code = code
	o.Message = err.Error()
	var ue *catalog.UpdateError
	if errors.As(err, &ue) {
		o.Code, o.Message = ue.Code, ue.Message
	}
	return o
}

// Process runs one DDL file through extraction, validation, comparison and
// update. The returned error is non-nil only when the batch must stop:
// incompatible type changes in a DDL that annotates some backfills but not all.
func (a *Alterator) Process(ctx context.Context, f File) (Outcome, error) {
	out := Outcome{File: f.Name}
	text := f.DDL
	if a.opts.AccountID != "" {
		text = strings.ReplaceAll(text, AccountIDPlaceholder, a.opts.AccountID)
	}

	db, name, err := schema.TableName(text)
	if err != nil {
		out.Message = err.Error()
		return skipped(out, FormatError), nil
	}
	out.Table = db + "." + name
	log := a.log.With(zap.String("table", out.Table), zap.String("file", f.Name))

	if !schema.IsCreate(text) {
		log.Info("not a CREATE statement, skipping")
		return skipped(out, NonCreateError), nil
	}

	if failures := rules.Run(rules.DDLText(text), a.opts.Rules); len(failures) > 0 {
		first := failures[0]
		out.RuleType, out.From, out.Message = first.Rule, FromDDL, first.Message
		if first.Rule != rules.FileFormat {
			log.Info("DDL validation failed", zap.String("rule", first.Rule))
			return skipped(out, ValidationError), nil
		}
		if _, err := a.catalog.GetTable(ctx, db, name); errors.Is(err, catalog.ErrTableNotFound) {
			return a.newTable(out, log), nil
		} else if err != nil {
			return failed(out, "CatalogReadFailed", err), nil
		}
		log.Info("DDL file format not supported", zap.String("message", first.Message))
		return skipped(out, ValidationError), nil
	}

	ddl, err := schema.ParseDDL(text)
	if err != nil {
		out.Message = err.Error()
		return skipped(out, FormatError), nil
	}

	table, err := a.catalog.GetTable(ctx, db, name)
	if errors.Is(err, catalog.ErrTableNotFound) {
		return a.newTable(out, log), nil
	}
	if err != nil {
		return failed(out, "CatalogReadFailed", err), nil
	}

	if failures := rules.Run(rules.Descriptor(table), a.opts.Rules); len(failures) > 0 {
		out.RuleType, out.From, out.Message = failures[0].Rule, FromCatalog, failures[0].Message
		log.Info("catalog validation failed", zap.String("rule", failures[0].Rule))
		return skipped(out, ValidationError), nil
	}

	m := selectMode(ddl, table)
	if m == hiveMode && table.IsIceberg() {
		out.RuleType, out.From, out.Message = rules.FileFormat, FromDDL, "DDL is not iceberg but the catalog table is"
		return skipped(out, ValidationError), nil
	}
	log = log.With(zap.Stringer("mode", m))

	catSnap, err := a.catalogSnapshot(ctx, table, m)
	if err != nil {
		return failed(out, "CatalogReadFailed", err), nil
	}

	if m != icebergMode {
		if problems := rules.CheckPartitions(ddl.ActivePartitions(), catSnap.Partitions); len(problems) > 0 {
			out.Details = &Details{Problems: problems}
			log.Info("partition mismatch", zap.Strings("problems", problems))
			return skipped(out, PartitionMismatch), nil
		}
	}

	opts := diff.Options{
		Table:  a.opts.IcebergCatalog + "." + out.Table,
		Force:  a.opts.Force,
		Engine: a.opts.Engine,
	}
	switch m {
	case icebergMode:
		opts.Engine, opts.NormalizeTypes = compat.Iceberg, true
	case migrationMode:
		opts.Engine, opts.Migration = compat.Iceberg, true
	default:
		opts.Table, opts.FoldAliases = out.Table, true
	}

	res, err := diff.Compare(catSnap, ddl.Snapshot, opts)
	var mbe *diff.MissingBackfillError
	switch {
	case errors.As(err, &mbe):
		if ddl.HasBackfill() {
			log.Error("incompatible changes with partial backfill annotations", zap.Error(err))
			return failed(out, "MissingBackfill", err), err
		}
		out.Details = &Details{Compatible: mbe.Compatible, Incompatible: mbe.Incompatible}
		out.From = FromDDL
		out.Message = err.Error()
		log.Info("incompatible type changes without backfill")
		return skipped(out, IncompatibleType), nil
	case err != nil:
		code := "CompareFailed"
		var ce *position.CycleError
		if errors.As(err, &ce) {
			code = "PositionCycle"
		}
		return failed(out, code, err), nil
	}
	out.Result = res

	if res.SequenceMismatch {
		log.Info("column sequence differs from catalog")
		return skipped(out, SequenceMismatch), nil
	}

	req := updateRequest(res, table, m)
	if req.Empty() {
		if !res.Empty() {
			log.Info("differences found without column updates")
		}
		out.Status = StatusIdentical
		return out, nil
	}
	out.Details = &Details{
		Compatible:   res.Columns.Updated.Compatible,
		Incompatible: res.Columns.Updated.Incompatible,
		Add:          req.Add,
		Delete:       req.Delete,
		Rename:       req.Renames,
		Positions:    req.Moves,
	}
	return a.apply(ctx, out, table, req, log), nil
}

func (a *Alterator) newTable(out Outcome, log *zap.Logger) Outcome {
	log.Info("table not in catalog, marking as new")
	out.Status = StatusNew
	out.RuleType, out.From, out.Message = "", "", ""
	return out
}

// apply records the catalog version before and after the update. In
// validate mode nothing is written and both versions are equal.
func (a *Alterator) apply(ctx context.Context, out Outcome, table *catalog.Table, req catalog.UpdateRequest, log *zap.Logger) Outcome {
	prev, err := a.catalog.LatestVersion(ctx, table.DatabaseName, table.Name)
	if err != nil {
		return failed(out, "CatalogReadFailed", err)
	}
	out.PreviousVersion = prev

	if a.opts.Validate {
		out.Status = StatusSuccess
		out.CurrentVersion = prev
		log.Info("validation only, catalog left unchanged")
		return out
	}

	if err := a.catalog.UpdateTableSchema(ctx, table, req); err != nil {
		log.Error("catalog update failed", zap.Error(err))
		return failed(out, "CatalogWriteFailed", err)
	}
	cur, err := a.catalog.LatestVersion(ctx, table.DatabaseName, table.Name)
	if err != nil {
		return failed(out, "CatalogReadFailed", err)
	}
	out.Status = StatusSuccess
	out.CurrentVersion = cur
	log.Info("catalog updated", zap.String("previous_version", prev), zap.String("current_version", cur))
	return out
}

func selectMode(ddl *schema.DDL, table *catalog.Table) mode {
	if _, ok := table.MetadataLocation(); ok && table.IsIceberg() {
		return icebergMode
	}
	if rules.IsIcebergDDL(ddl.Text) {
		return migrationMode
	}
	return hiveMode
}

func (a *Alterator) catalogSnapshot(ctx context.Context, table *catalog.Table, m mode) (schema.Snapshot, error) {
	switch m {
	case icebergMode:
		loc, _ := table.MetadataLocation()
		doc, err := a.fetcher.Download(ctx, loc)
		if err != nil {
			return schema.Snapshot{}, fmt.Errorf("failed to read iceberg metadata: %w", err)
		}
		return schema.FromIcebergMetadata(doc)
	case migrationMode:
		return schema.FromDescriptor(table)
	default:
		return schema.FromHiveDescriptor(table)
	}
}

// updateRequest turns a comparison into the catalog's column update.
// Partition keys live outside the storage descriptor columns and are left out.
func updateRequest(res *diff.Result, table *catalog.Table, m mode) catalog.UpdateRequest {
	keep := func(name string) bool {
		return m == hiveMode || !table.IsPartitionKey(name)
	}
	var req catalog.UpdateRequest
	for _, c := range res.Add {
		if keep(c.Name) {
			req.Add = append(req.Add, catalog.Column{Name: c.Name, Type: c.Type})
		}
	}
	for _, c := range res.Delete {
		if keep(c.Name) {
			req.Delete = append(req.Delete, catalog.Column{Name: c.Name, Type: c.Type})
		}
	}
	for _, r := range res.Columns.Renamed {
		req.Renames = append(req.Renames, catalog.Rename{From: r.OldName, To: r.NewName, Type: r.NewType})
	}
	for _, p := range res.Columns.Updated.PositionChanges {
		if keep(p.Name) && (p.First || keep(p.After)) {
			req.Moves = append(req.Moves, catalog.Move{Name: p.Name, After: p.After, First: p.First})
		}
	}
	return req
}
