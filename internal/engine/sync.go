package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/diff"
	"ddl-alterator/internal/rules"
	"ddl-alterator/internal/schema"

	"go.uber.org/zap"
)

// TableRef names a catalog table.
type TableRef struct {
	Database string
	Name     string
}

func (r TableRef) String() string {
	return r.Database + "." + r.Name
}

// ParseTableRef splits db.table.
func ParseTableRef(s string) (TableRef, error) {
	db, name, ok := strings.Cut(s, ".")
	if !ok || db == "" || name == "" {
		return TableRef{}, fmt.Errorf("table %q must be in db.table form", s)
	}
	return TableRef{Database: db, Name: name}, nil
}

// Sync aligns the columns of the target table with those of the source
// table, both read from the catalog. With partitionCheck set the partition
// keys must match before anything is written.
func (a *Alterator) Sync(ctx context.Context, source, target TableRef, partitionCheck bool) (Outcome, error) {
	out := Outcome{File: source.String(), Table: target.String()}
	log := a.log.With(zap.String("source", source.String()), zap.String("target", target.String()))

	src, err := a.catalog.GetTable(ctx, source.Database, source.Name)
	if err != nil {
		return out, fmt.Errorf("source table: %w", err)
	}
	tgt, err := a.catalog.GetTable(ctx, target.Database, target.Name)
	if err != nil {
		return out, fmt.Errorf("target table: %w", err)
	}

	for _, t := range []*catalog.Table{src, tgt} {
		if failures := rules.Run(rules.Descriptor(t), a.opts.Rules); len(failures) > 0 {
			out.RuleType, out.From, out.Message = failures[0].Rule, FromCatalog, t.QualifiedName()+": "+failures[0].Message
			return skipped(out, ValidationError), nil
		}
	}

	srcSnap, err := schema.FromHiveDescriptor(src)
	if err != nil {
		return out, fmt.Errorf("source table: %w", err)
	}
	tgtSnap, err := schema.FromHiveDescriptor(tgt)
	if err != nil {
		return out, fmt.Errorf("target table: %w", err)
	}

	if partitionCheck {
		if problems := rules.CheckPartitions(srcSnap.Partitions, tgtSnap.Partitions); len(problems) > 0 {
			out.Details = &Details{Problems: problems}
			return skipped(out, PartitionMismatch), nil
		}
	}

	// parameters are table local and not synced
	srcSnap.Properties, tgtSnap.Properties = nil, nil
	srcSnap.Partitions, tgtSnap.Partitions = nil, nil

	res, err := diff.Compare(tgtSnap, srcSnap, diff.Options{
		Table:       target.String(),
		Force:       a.opts.Force,
		Engine:      a.opts.Engine,
		FoldAliases: true,
	})
	var mbe *diff.MissingBackfillError
	if errors.As(err, &mbe) {
		out.Details = &Details{Compatible: mbe.Compatible, Incompatible: mbe.Incompatible}
		out.Message = err.Error()
		return skipped(out, IncompatibleType), nil
	}
	if err != nil {
		return out, err
	}
	out.Result = res

	req := updateRequest(res, tgt, hiveMode)
	if req.Empty() {
		out.Status = StatusIdentical
		log.Info("tables already in sync")
		return out, nil
	}
	out.Details = &Details{
		Compatible:   res.Columns.Updated.Compatible,
		Incompatible: res.Columns.Updated.Incompatible,
		Add:          req.Add,
		Delete:       req.Delete,
	}
	return a.apply(ctx, out, tgt, req, log), nil
}
