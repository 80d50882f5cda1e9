// Fanout - content graph and query fan-out analyzer for WordPress sites.
//
// Fanout fetches a site's posts, pages and taxonomies, builds a content
// graph from their internal links, and reports orphans, hubs, semantic
// clusters and recommendations for multi-source answer engines.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/fanout-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
