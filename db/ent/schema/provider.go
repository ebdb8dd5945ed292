package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

type Provider struct{ ent.Schema }

func (Provider) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "providers"},
	}
}

func (Provider) Fields() []ent.Field {
	return []ent.Field{
		// provider ids are caller supplied slugs, e.g. "unimed-odonto"
		field.String("id").MaxLen(64).NotEmpty().Immutable(),
		field.String("name").NotEmpty(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Provider) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("runs", ExtractionRun.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("procedures", Procedure.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
