package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Procedure is one surviving catalog entry. Amounts are stored in cents;
// a NULL value_cents means the document listed no price.
type Procedure struct{ ent.Schema }

func (Procedure) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "procedures"},
	}
}

func (Procedure) Fields() []ent.Field {
	return []ent.Field{
		field.String("provider_id").MaxLen(64),
		field.String("run_id").MaxLen(36),
		field.String("code").MaxLen(64).NotEmpty(),
		field.String("description").
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Int64("value_cents").Optional().Nillable().NonNegative(),
		field.Int("page").Default(0).NonNegative(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Procedure) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("provider", Provider.Type).
			Ref("procedures").
			Field("provider_id").
			Unique().
			Required(),
		edge.From("run", ExtractionRun.Type).
			Ref("procedures").
			Field("run_id").
			Unique().
			Required(),
	}
}

func (Procedure) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("provider_id", "code").Unique(),
	}
}
