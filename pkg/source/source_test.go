package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

func boolPtr(b bool) *bool { return &b }

func TestTime_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		time *Time
		want bool
	}{
		{name: "nil", time: nil, want: false},
		{name: "empty", time: &Time{}, want: false},
		{name: "count only", time: &Time{Count: 2}, want: false},
		{name: "period only", time: &Time{Period: PeriodHour}, want: false},
		{name: "unknown period", time: &Time{Count: 2, Period: "fortnight"}, want: false},
		{name: "both", time: &Time{Count: 2, Period: PeriodHour}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.time.IsConfigured())
		})
	}
}

func TestFreshnessThreshold_Status(t *testing.T) {
	threshold := &FreshnessThreshold{
		WarnAfter:  &Time{Count: 12, Period: PeriodHour},
		ErrorAfter: &Time{Count: 1, Period: PeriodDay},
	}

	tests := []struct {
		age  time.Duration
		want FreshnessStatus
	}{
		{age: time.Hour, want: FreshnessPass},
		{age: 12 * time.Hour, want: FreshnessPass},
		{age: 13 * time.Hour, want: FreshnessWarn},
		{age: 25 * time.Hour, want: FreshnessError},
	}

	for _, tt := range tests {
		t.Run(tt.age.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, threshold.Status(tt.age))
		})
	}

	errorOnly := &FreshnessThreshold{ErrorAfter: &Time{Count: 30, Period: PeriodMinute}}
	assert.Equal(t, FreshnessError, errorOnly.Status(time.Hour))
	assert.True(t, errorOnly.IsConfigured())

	var unset *FreshnessThreshold
	assert.False(t, unset.IsConfigured())
	assert.Equal(t, FreshnessPass, unset.Status(1000*time.Hour))
	assert.False(t, (&FreshnessThreshold{WarnAfter: &Time{}}).IsConfigured())
}

func TestQuoting_Merged(t *testing.T) {
	base := Quoting{Database: boolPtr(true), Schema: boolPtr(true)}
	merged := base.Merged(
		Quoting{Schema: boolPtr(false)},
		Quoting{Identifier: boolPtr(false)},
		Quoting{Identifier: boolPtr(true)},
	)

	assert.Equal(t, boolPtr(true), merged.Database)
	assert.Equal(t, boolPtr(false), merged.Schema)
	assert.Equal(t, boolPtr(true), merged.Identifier)
	assert.Nil(t, merged.Column)
	assert.Equal(t, boolPtr(true), base.Schema)

	assert.Nil(t, Quoting{Column: boolPtr(true)}.Override())
}

const sourceYAML = `
name: raw
database: lake
loaded_at_field: _loaded_at
quoting:
  identifier: false
freshness:
  warn_after: {count: 12, period: hour}
  error_after: {count: 1, period: day}
tables:
  - name: orders
  - name: customers
    identifier: CUSTOMERS_V2
    freshness:
      warn_after: {count: 1, period: hour}
      filter: "_loaded_at > now() - interval '7 days'"
  - name: clicks
    loaded_at_field: ts
    external:
      location: s3://lake/clicks/
      file_format: parquet
      partitions:
        - {name: dt, data_type: date}
`

func TestDefinition_ResolvedTables(t *testing.T) {
	var def Definition
	require.NoError(t, yaml.Unmarshal([]byte(sourceYAML), &def))
	require.NoError(t, def.Validate())

	tables := def.ResolvedTables()
	require.Len(t, tables, 3)

	orders := tables[0]
	assert.Equal(t, "raw.orders", orders.Key())
	assert.Equal(t, "raw", orders.Schema)
	assert.Equal(t, "orders", orders.Identifier)
	assert.Equal(t, "_loaded_at", orders.LoadedAtField)
	assert.True(t, orders.HasFreshness())
	assert.Equal(t, FreshnessWarn, orders.Freshness.Status(13*time.Hour))

	customers := tables[1]
	assert.Equal(t, "CUSTOMERS_V2", customers.Identifier)
	assert.Equal(t, FreshnessWarn, customers.Freshness.Status(2*time.Hour))
	assert.Equal(t, FreshnessError, customers.Freshness.Status(25*time.Hour))
	assert.Equal(t,
		`select max(_loaded_at) as max_loaded_at from raw.CUSTOMERS_V2 where _loaded_at > now() - interval '7 days'`,
		customers.FreshnessQuery("raw.CUSTOMERS_V2"))

	clicks := tables[2]
	assert.Equal(t, "ts", clicks.LoadedAtField)
	assert.True(t, clicks.External.IsConfigured())
}

func TestDefinition_Nodes(t *testing.T) {
	var def Definition
	require.NoError(t, yaml.Unmarshal([]byte(sourceYAML), &def))

	nodes := def.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "table", nodes[0].Materialized)
	assert.Equal(t, "external", nodes[2].Materialized)
	assert.Equal(t, "s3://lake/clicks/", nodes[2].ConfigString("location"))

	f := relation.NewFactory()
	orders, err := f.MakeFromNode(nodes[0])
	require.NoError(t, err)
	assert.Equal(t, `"lake"."raw".orders`, orders.FullyQualifiedPath())

	clicks, err := f.MakeFromNode(nodes[2])
	require.NoError(t, err)
	ext, ok := clicks.(*relation.ExternalRelation)
	require.True(t, ok)
	assert.Equal(t, "parquet", ext.FileFormat())
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{name: "missing name", def: Definition{}, want: "name is required"},
		{
			name: "bad period",
			def:  Definition{Name: "raw", Freshness: &FreshnessThreshold{WarnAfter: &Time{Count: 1, Period: "week"}}},
			want: "unknown period",
		},
		{
			name: "duplicate table",
			def:  Definition{Name: "raw", Tables: []TableDefinition{{Name: "a"}, {Name: "a"}}},
			want: "duplicate table",
		},
		{
			name: "partition without data type",
			def: Definition{Name: "raw", Tables: []TableDefinition{{
				Name:     "a",
				External: &ExternalTable{Location: "s3://x", Partitions: []ExternalPartition{{Name: "dt"}}},
			}}},
			want: "data_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.def.Validate(), tt.want)
		})
	}
}
