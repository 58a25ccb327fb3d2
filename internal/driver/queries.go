package driver

// Links of the perspective are stored as LINK relationships between
// Expression nodes. Literal targets are Expression nodes too.

var IndexQueries = []string{
	"CREATE INDEX ON :Expression(uri);",
	"CREATE INDEX ON :Expression(perspective);",
}

const (
	AddLinksQuery = `
		UNWIND $links AS l
		MERGE (s:Expression {uri: l.source, perspective: $perspective})
		MERGE (t:Expression {uri: l.target, perspective: $perspective})
		CREATE (s)-[r:LINK {
			predicate: l.predicate,
			author: l.author,
			timestamp: l.timestamp,
			seq: l.seq
		}]->(t)
		RETURN count(r) AS created
	`

	// Empty parameters act as wildcards.
	QueryLinksQuery = `
		MATCH (s:Expression {perspective: $perspective})-[r:LINK]->(t:Expression {perspective: $perspective})
		WHERE ($source = "" OR s.uri = $source)
			AND ($predicate = "" OR r.predicate = $predicate)
			AND ($target = "" OR t.uri = $target)
		RETURN s.uri AS source, r.predicate AS predicate, t.uri AS target,
			r.author AS author, r.timestamp AS timestamp
		ORDER BY r.timestamp ASC, r.seq ASC
	`

	RemoveLinksQuery = `
		UNWIND $links AS l
		MATCH (s:Expression {uri: l.source, perspective: $perspective})-[r:LINK]->(t:Expression {uri: l.target, perspective: $perspective})
		WHERE r.predicate = l.predicate AND r.author = l.author AND r.timestamp = l.timestamp
		DELETE r
		RETURN count(*) AS removed
	`

	ChildrenOfTypeQuery = `
		MATCH (p:Expression {uri: $parent, perspective: $perspective})-[c:LINK {predicate: $has_child}]->(child:Expression)
		MATCH (child)-[:LINK {predicate: $entry_type}]->(:Expression {uri: $type})
		RETURN DISTINCT child.uri AS id, c.timestamp AS timestamp, c.seq AS seq
		ORDER BY timestamp ASC, seq ASC
	`

	MaxSeqQuery = `
		MATCH (:Expression {perspective: $perspective})-[r:LINK]->()
		RETURN coalesce(max(r.seq), 0) AS seq
	`
)
