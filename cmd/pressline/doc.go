// Command pressline turns a CSV of blog topics into published posts. It
// generates article drafts, resolves featured media, and pushes the results
// to a WordPress site, caching per-topic progress so interrupted or repeated
// runs pick up where they stopped instead of regenerating or double-posting.
package main
