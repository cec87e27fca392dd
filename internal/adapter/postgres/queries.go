package postgres

// queryTableExists: $1 is table_name, resolved in the current schema.
const queryTableExists = `
	SELECT count(*)
	FROM information_schema.tables t
	WHERE t.table_schema = current_schema()
		AND t.table_name = $1
		AND t.table_type = 'BASE TABLE'`

// queryLiveColumns: $1 is table_name. Character types carry their length so
// drift reports show the declared size.
const queryLiveColumns = `
	SELECT
		c.column_name,
		CASE WHEN c.character_maximum_length IS NOT NULL
			THEN c.data_type || '(' || c.character_maximum_length || ')'
			ELSE c.data_type
		END,
		c.is_nullable = 'YES',
		CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END,
		c.column_default,
		CASE WHEN c.is_identity = 'YES' THEN 'identity' ELSE '' END
	FROM information_schema.columns c
	LEFT JOIN (
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
			AND kcu.table_name = tc.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
	) pk ON pk.column_name = c.column_name
	WHERE c.table_schema = current_schema()
		AND c.table_name = $1
	ORDER BY c.ordinal_position`
