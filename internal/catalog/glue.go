package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/smithy-go"
)

// GlueAPI is the subset of the Glue client the catalog uses.
type GlueAPI interface {
	GetTable(ctx context.Context, in *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	UpdateTable(ctx context.Context, in *glue.UpdateTableInput, optFns ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
	GetTableVersions(ctx context.Context, in *glue.GetTableVersionsInput, optFns ...func(*glue.Options)) (*glue.GetTableVersionsOutput, error)
}

// GlueConfig configures the Glue client.
type GlueConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	CatalogID string
}

// Glue is a Catalog backed by the AWS Glue Data Catalog.
type Glue struct {
	client    GlueAPI
	catalogID string
}

var _ Catalog = (*Glue)(nil)

// NewGlue builds a Glue catalog from the default AWS credential chain, or
// from static keys when both are set.
func NewGlue(ctx context.Context, cfg GlueConfig) (*Glue, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	client := glue.NewFromConfig(awsCfg, func(o *glue.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewGlueWithClient(client, cfg.CatalogID), nil
}

// NewGlueWithClient wraps an existing client.
func NewGlueWithClient(client GlueAPI, catalogID string) *Glue {
	return &Glue{client: client, catalogID: catalogID}
}

func (g *Glue) catalog() *string {
	if g.catalogID == "" {
		return nil
	}
	return aws.String(g.catalogID)
}

func (g *Glue) getRaw(ctx context.Context, database, name string) (*types.Table, error) {
	out, err := g.client.GetTable(ctx, &glue.GetTableInput{
		CatalogId:    g.catalog(),
		DatabaseName: aws.String(database),
		Name:         aws.String(name),
	})
	if err != nil {
		var nf *types.EntityNotFoundException
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%s.%s: %w", database, name, ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to get table %s.%s: %w", database, name, err)
	}
	if out.Table == nil {
		return nil, fmt.Errorf("%s.%s: %w", database, name, ErrTableNotFound)
	}
	return out.Table, nil
}

func (g *Glue) GetTable(ctx context.Context, database, name string) (*Table, error) {
	raw, err := g.getRaw(ctx, database, name)
	if err != nil {
		return nil, err
	}
	return fromGlue(raw), nil
}

// UpdateTableSchema re-reads the table so attributes this package does not
// model survive the write, then replaces its columns.
func (g *Glue) UpdateTableSchema(ctx context.Context, table *Table, req UpdateRequest) error {
	raw, err := g.getRaw(ctx, table.DatabaseName, table.Name)
	if err != nil {
		return err
	}
	columns, err := ApplyUpdate(table.StorageDescriptor.Columns, req)
	if err != nil {
		return &UpdateError{Code: "InvalidRequest", Message: err.Error()}
	}

	input := toTableInput(raw)
	if input.StorageDescriptor == nil {
		input.StorageDescriptor = &types.StorageDescriptor{}
	}
	input.StorageDescriptor.Columns = toGlueColumns(columns)

	_, err = g.client.UpdateTable(ctx, &glue.UpdateTableInput{
		CatalogId:    g.catalog(),
		DatabaseName: aws.String(table.DatabaseName),
		TableInput:   input,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return &UpdateError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
		}
		return &UpdateError{Code: "Unknown", Message: err.Error()}
	}
	return nil
}

// LatestVersion returns the highest version id Glue holds for the table.
func (g *Glue) LatestVersion(ctx context.Context, database, name string) (string, error) {
	var (
		latest    int
		latestID  string
		nextToken *string
	)
	for {
		out, err := g.client.GetTableVersions(ctx, &glue.GetTableVersionsInput{
			CatalogId:    g.catalog(),
			DatabaseName: aws.String(database),
			TableName:    aws.String(name),
			NextToken:    nextToken,
		})
		if err != nil {
			var nf *types.EntityNotFoundException
			if errors.As(err, &nf) {
				return "", fmt.Errorf("%s.%s: %w", database, name, ErrTableNotFound)
			}
			return "", fmt.Errorf("failed to get table versions for %s.%s: %w", database, name, err)
		}
		for _, v := range out.TableVersions {
			id := aws.ToString(v.VersionId)
			n, err := strconv.Atoi(id)
			if err != nil {
				continue
			}
			if latestID == "" || n > latest {
				latest, latestID = n, id
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return latestID, nil
}

func fromGlue(raw *types.Table) *Table {
	t := &Table{
		DatabaseName:  aws.ToString(raw.DatabaseName),
		Name:          aws.ToString(raw.Name),
		TableType:     aws.ToString(raw.TableType),
		PartitionKeys: fromGlueColumns(raw.PartitionKeys),
		Parameters:    raw.Parameters,
		VersionID:     aws.ToString(raw.VersionId),
	}
	if sd := raw.StorageDescriptor; sd != nil {
		t.StorageDescriptor = StorageDescriptor{
			Columns:      fromGlueColumns(sd.Columns),
			Location:     aws.ToString(sd.Location),
			InputFormat:  aws.ToString(sd.InputFormat),
			OutputFormat: aws.ToString(sd.OutputFormat),
		}
		if sd.SerdeInfo != nil {
			t.StorageDescriptor.SerdeInfo = SerDeInfo{
				SerializationLibrary: aws.ToString(sd.SerdeInfo.SerializationLibrary),
				Parameters:           sd.SerdeInfo.Parameters,
			}
		}
	}
	return t
}

func fromGlueColumns(cols []types.Column) []Column {
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, Column{Name: aws.ToString(c.Name), Type: aws.ToString(c.Type), Comment: aws.ToString(c.Comment)})
	}
	return out
}

func toGlueColumns(cols []Column) []types.Column {
	out := make([]types.Column, 0, len(cols))
	for _, c := range cols {
		gc := types.Column{Name: aws.String(c.Name), Type: aws.String(c.Type)}
		if c.Comment != "" {
			gc.Comment = aws.String(c.Comment)
		}
		out = append(out, gc)
	}
	return out
}

// toTableInput copies the writable attributes of a table. Read-only ones
// (database name, create and update time, created by, lake formation
// registration, catalog id, version id, federated table) are left out.
func toTableInput(raw *types.Table) *types.TableInput {
	return &types.TableInput{
		Name:              raw.Name,
		Description:       raw.Description,
		Owner:             raw.Owner,
		LastAccessTime:    raw.LastAccessTime,
		LastAnalyzedTime:  raw.LastAnalyzedTime,
		Retention:         raw.Retention,
		StorageDescriptor: raw.StorageDescriptor,
		PartitionKeys:     raw.PartitionKeys,
		ViewOriginalText:  raw.ViewOriginalText,
		ViewExpandedText:  raw.ViewExpandedText,
		TableType:         raw.TableType,
		Parameters:        raw.Parameters,
		TargetTable:       raw.TargetTable,
	}
}
