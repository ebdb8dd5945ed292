package schema

import (
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

func fieldNames(fields []ent.Field) []string {
	var out []string
	for _, f := range fields {
		out = append(out, f.Descriptor().Name)
	}
	return out
}

// The repository declares its tables by hand; they must carry every
// field the ent schema names.
func TestTablesMatchSchema(t *testing.T) {
	tests := []struct {
		table  *schema.Table
		fields []ent.Field
	}{
		{repository.ProvidersTable, Provider{}.Fields()},
		{repository.ExtractionRunsTable, ExtractionRun{}.Fields()},
		{repository.ProceduresTable, Procedure{}.Fields()},
	}
	for _, tt := range tests {
		t.Run(tt.table.Name, func(t *testing.T) {
			for _, name := range fieldNames(tt.fields) {
				if _, ok := tt.table.Column(name); !ok {
					t.Errorf("table %s has no column %q", tt.table.Name, name)
				}
			}
		})
	}
}

func TestStatusValidators(t *testing.T) {
	var status, runStatus *ent.Field
	for _, f := range (ExtractionRun{}).Fields() {
		switch f.Descriptor().Name {
		case "status":
			status = &f
		case "run_status":
			runStatus = &f
		}
	}
	if status == nil || runStatus == nil {
		t.Fatal("status fields missing")
	}

	check := func(f ent.Field, value string) error {
		for _, v := range f.Descriptor().Validators {
			if err := v.(func(string) error)(value); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(*status, "SUCCEEDED"); err != nil {
		t.Errorf("SUCCEEDED rejected: %v", err)
	}
	if err := check(*status, "DONE"); err == nil {
		t.Error("DONE accepted as job status")
	}
	if err := check(*runStatus, "PARTIAL"); err != nil {
		t.Errorf("PARTIAL rejected: %v", err)
	}
	if err := check(*runStatus, "SUCCEEDED"); err == nil {
		t.Error("SUCCEEDED accepted as run status")
	}
}
