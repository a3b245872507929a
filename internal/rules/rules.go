package rules

import (
	"fmt"
	"regexp"
	"strings"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/schema"
)

const (
	ExternalTable = "EXTERNAL_TABLE"
	FileFormat    = "FILE_FORMAT"
)

// Target is what a rule validates: either raw DDL text or a catalog descriptor.
// Exactly one of the two is set.
type Target struct {
	DDL        string
	Descriptor *catalog.Table
}

func DDLText(text string) Target {
	return Target{DDL: text}
}

func Descriptor(t *catalog.Table) Target {
	return Target{Descriptor: t}
}

// IsDescriptor reports which variant the target holds.
func (t Target) IsDescriptor() bool {
	return t.Descriptor != nil
}

// Failure names a rule the target did not satisfy.
type Failure struct {
	Rule    string `json:"type"`
	Message string `json:"message"`
}

// Rule checks one property of a table definition.
type Rule struct {
	Name  string
	Check func(Target) (bool, string)
}

// Default is the rule book every table is validated against.
var Default = []Rule{
	{Name: ExternalTable, Check: isExternal},
	{Name: FileFormat, Check: isSupportedFormat},
}

// Run evaluates rules against the target in order.
func Run(target Target, book []Rule) []Failure {
	var failures []Failure
	for _, r := range book {
		if ok, msg := r.Check(target); !ok {
			failures = append(failures, Failure{Rule: r.Name, Message: msg})
		}
	}
	return failures
}

var (
	externalRgx     = regexp.MustCompile(`(?i)CREATE\s+EXTERNAL\s+TABLE`)
	usingIcebergRgx = regexp.MustCompile(`(?i)USING\s+iceberg`)
	icebergPropRgx  = regexp.MustCompile(`(?i)'table_type'\s*=\s*'iceberg'`)
	storedParquet   = regexp.MustCompile(`(?i)STORED\s+AS\s+PARQUET`)
	inputFormatRgx  = regexp.MustCompile(`(?i)INPUTFORMAT\s+'([^']+)'`)
	outputFormatRgx = regexp.MustCompile(`(?i)OUTPUTFORMAT\s+'([^']+)'`)
	serdeRgx        = regexp.MustCompile(`(?i)ROW\s+FORMAT\s+SERDE\s+'([^']+)'`)
)

func isExternal(t Target) (bool, string) {
	if t.IsDescriptor() {
		if t.Descriptor.TableType == catalog.ExternalTable {
			return true, ""
		}
		return false, fmt.Sprintf("table type is %q, expected %s", t.Descriptor.TableType, catalog.ExternalTable)
	}
	if externalRgx.MatchString(t.DDL) || IsIcebergDDL(t.DDL) {
		return true, ""
	}
	return false, "DDL does not create an external table"
}

func isSupportedFormat(t Target) (bool, string) {
	if t.IsDescriptor() {
		if IsParquetDescriptor(t.Descriptor) || t.Descriptor.IsIceberg() {
			return true, ""
		}
		return false, "catalog table is neither parquet nor iceberg"
	}
	if IsParquetDDL(t.DDL) || IsIcebergDDL(t.DDL) {
		return true, ""
	}
	return false, "DDL is neither parquet nor iceberg"
}

// IsIcebergDDL reports whether the DDL declares an Iceberg table.
func IsIcebergDDL(text string) bool {
	return usingIcebergRgx.MatchString(text) || icebergPropRgx.MatchString(text)
}

// IsParquetDDL accepts STORED AS PARQUET, or an explicit parquet serde with
// parquet input and output formats.
func IsParquetDDL(text string) bool {
	if storedParquet.MatchString(text) {
		return true
	}
	serde := serdeRgx.FindStringSubmatch(text)
	in := inputFormatRgx.FindStringSubmatch(text)
	out := outputFormatRgx.FindStringSubmatch(text)
	return serde != nil && in != nil && out != nil &&
		serde[1] == catalog.ParquetSerde &&
		in[1] == catalog.ParquetInputFormat &&
		out[1] == catalog.ParquetOutputFormat
}

// IsParquetDescriptor checks the serde and both formats of the storage descriptor.
func IsParquetDescriptor(t *catalog.Table) bool {
	sd := t.StorageDescriptor
	return sd.SerdeInfo.SerializationLibrary == catalog.ParquetSerde &&
		sd.InputFormat == catalog.ParquetInputFormat &&
		sd.OutputFormat == catalog.ParquetOutputFormat
}

// CheckPartitions compares the partition columns declared in the DDL with
// the catalog's: count, names in order, and types where both sides carry one.
func CheckPartitions(ddl, cat []schema.PartitionColumn) []string {
	var problems []string
	if len(ddl) != len(cat) {
		problems = append(problems, fmt.Sprintf("partition count differs: DDL has %d, catalog has %d", len(ddl), len(cat)))
	}
	for i := 0; i < len(ddl) && i < len(cat); i++ {
		d, c := ddl[i], cat[i]
		if !strings.EqualFold(d.Name, c.Name) {
			problems = append(problems, fmt.Sprintf("partition %d name differs: DDL %s, catalog %s", i+1, d.Name, c.Name))
			continue
		}
		if d.Type != "" && c.Type != "" && schema.CleanType(d.Type) != schema.CleanType(c.Type) {
			problems = append(problems, fmt.Sprintf("partition %s type differs: DDL %s, catalog %s", d.Name, d.Type, c.Type))
		}
	}
	return problems
}
