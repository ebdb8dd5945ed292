package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions mirror db/ent/schema.
var (
	ProvidersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "name", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	ProvidersTable = &schema.Table{
		Name:       "providers",
		Columns:    ProvidersColumns,
		PrimaryKey: []*schema.Column{ProvidersColumns[0]},
	}

	ExtractionRunsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "status", Type: field.TypeString},
		{Name: "run_status", Type: field.TypeString, Nullable: true},
		{Name: "source_path", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "content_hash", Type: field.TypeString, Nullable: true},
		{Name: "total_pages", Type: field.TypeInt, Default: 0},
		{Name: "contributing_pages", Type: field.TypeInt, Default: 0},
		{Name: "procedures", Type: field.TypeInt, Default: 0},
		{Name: "conflicts", Type: field.TypeInt, Default: 0},
		{Name: "report", Type: field.TypeJSON, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
		{Name: "provider_id", Type: field.TypeString, Size: 64},
	}
	ExtractionRunsTable = &schema.Table{
		Name:       "extraction_runs",
		Columns:    ExtractionRunsColumns,
		PrimaryKey: []*schema.Column{ExtractionRunsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extraction_runs_providers_runs",
				Columns:    []*schema.Column{ExtractionRunsColumns[13]},
				RefColumns: []*schema.Column{ProvidersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "extractionrun_provider_id_started_at",
				Unique:  false,
				Columns: []*schema.Column{ExtractionRunsColumns[13], ExtractionRunsColumns[11]},
			},
		},
	}

	ProceduresColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "code", Type: field.TypeString, Size: 64},
		{Name: "description", Type: field.TypeString, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "value_cents", Type: field.TypeInt64, Nullable: true},
		{Name: "page", Type: field.TypeInt, Default: 0},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "provider_id", Type: field.TypeString, Size: 64},
		{Name: "run_id", Type: field.TypeString, Size: 36},
	}
	ProceduresTable = &schema.Table{
		Name:       "procedures",
		Columns:    ProceduresColumns,
		PrimaryKey: []*schema.Column{ProceduresColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "procedures_providers_procedures",
				Columns:    []*schema.Column{ProceduresColumns[6]},
				RefColumns: []*schema.Column{ProvidersColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "procedures_extraction_runs_procedures",
				Columns:    []*schema.Column{ProceduresColumns[7]},
				RefColumns: []*schema.Column{ExtractionRunsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "procedure_provider_id_code",
				Unique:  true,
				Columns: []*schema.Column{ProceduresColumns[6], ProceduresColumns[1]},
			},
		},
	}

	Tables = []*schema.Table{
		ProvidersTable,
		ExtractionRunsTable,
		ProceduresTable,
	}
)

func init() {
	ExtractionRunsTable.ForeignKeys[0].RefTable = ProvidersTable
	ProceduresTable.ForeignKeys[0].RefTable = ProvidersTable
	ProceduresTable.ForeignKeys[1].RefTable = ExtractionRunsTable
}

// Migrate creates or updates the tables.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.Driver, schema.WithForeignKeys(true))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		d.logger.Error("migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	d.logger.Info("migration complete", "tables", len(Tables))
	return nil
}
