/*
SQLbind binds named query parameters to prepared statements with type-correct
coercion. Every binding may carry a type tag that says how its value should be
converted before it reaches the database.

# Basics

Bindings map placeholders, including their prefix, to values:

	bindings := sqlbind.Bindings{
		":name":  "Fred",
		":id":    sqlbind.P("30", "int"),
		":query": sqlbind.P(userInput, "match"),
		":teams": sqlbind.In([]string{"engineering", "sales"}, "string"),
	}

A bare value is passed to the driver unchanged, apart from text which is
scrubbed of byte sequences that are invalid in the configured encoding. A
[Param] is converted according to its tag:

	int, integer, number, limit, offset      64-bit integer
	str, string, text, float, varchar(2)     text
	bool, boolean                            boolean
	null                                     NULL, whatever the value
	lob, large, object, blob                 binary data
	year, date, time, datetime, timestamp    text, formatted by the TimeFormatter
	bytes, bits                              text, formatted by the SizeFormatter
	like                                     text wrapped in % wildcards
	match                                    sanitised full-text search expression
	in                                       expanded by UnpackIN

Tags are case-insensitive. An integer tag, such as [ParamInt], is passed to the
statement as the type marker. Any other tag binds the value as text.

# Placeholders

[BindMultiple] only binds placeholders that occur in the query text, so one
set of bindings can be used for several variants of a query. Entries that are
not in the query are skipped silently.

# IN lists

An "in" parameter holds a list of values. [UnpackIN] rewrites the query before
it is prepared:

	SELECT * FROM person WHERE team IN (:teams)

becomes

	SELECT * FROM person WHERE team IN (:teams_0, :teams_1)

with ":teams_0" and ":teams_1" bound as the element type.

# Full-text search

Values tagged "match" are rewritten into a safe boolean full-text expression.
Operators that have nothing to operate on are dropped, unbalanced quotes and
parentheses are removed, and text made only of operators becomes empty.

# Databases

[DB] wraps a [database/sql.DB], caching prepared statements and running
[UnpackIN], preparation and [Binder.BindMultiple] for each query. Any other
prepared statement interface can be used by implementing [Statement].
*/
package sqlbind
