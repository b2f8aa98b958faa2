// Package main is the entry point for the llmbridge binary. It delegates
// immediately to the CLI command tree.
package main

import (
	"context"
	"os"

	"github.com/llmbridge/llmbridge/internal/bridgecli"
	"github.com/llmbridge/llmbridge/internal/bridgelog"
)

func main() {
	if err := bridgecli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		bridgelog.New(bridgelog.Options{}).Error("fatal error", "err", err)
		os.Exit(1)
	}
}
