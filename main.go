// Package main provides the genminute CLI entry point.
// genminute turns meeting recordings into transcripts, summaries, and
// scheduled follow-ups.
package main

import "github.com/Welshcorki/Genminute/cmd"

func main() {
	cmd.Execute()
}
