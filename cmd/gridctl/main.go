// gridctl inspects and exports the tables served by datagrid without
// running the HTTP server.
//
// Usage:
//
//	# List registered tables and their sources
//	gridctl tables
//
//	# Show option counts of an enum column
//	gridctl facets tasks status
//
//	# Export the TODO tasks created this year as a PDF
//	gridctl export tasks --format pdf --filter status=TODO --filter createdAt=2024-01-01.. --out ./exports
//
//	# Read tasks from a CSV file instead of the generated sample
//	gridctl --source-kind csv --path tasks.csv export tasks
package main

func main() {
	Execute()
}
