package llm

import (
	"fmt"

	"github.com/JonMunkholm/olive/internal/schema"
)

// BuildPrompt constructs the SQL generation prompt for one question. The
// output depends only on its arguments. The rules are advice to the model;
// only the SELECT prefix is enforced afterwards.
func BuildPrompt(sample schema.Sample, question, table string) string {
	return fmt.Sprintf(`
You are an expert Postgres SQL generator.

Here is the schema for the "%[1]s" table:
%[2]s

Here are some sample rows:
%[3]s

User question: "%[4]s"

Instructions:
- Use only the columns from the schema above.
- For value-based queries, always use a WHERE clause.
- For case-insensitive or partial matches, use ILIKE and wrap the value in %% if partial.
- For multiple conditions, use AND.
- Use LIMIT if the user asks for a specific number of results.
- Never return all rows unless the user explicitly asks for all.
- Never hallucinate columns; only use columns from the schema.
- Return ONLY a valid SQL SELECT statement for the "%[1]s" table, nothing else.
- Do not include explanations, comments, or markdown/code block formatting.
`, table, sample.Text(), sample.RowsJSON(), question)
}
