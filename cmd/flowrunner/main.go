// Command flowrunner runs browser workflows against WordPress/LearnPress sites.
package main

import "github.com/lmsqa/flowrunner/pkg/cli"

func main() {
	cli.Execute()
}
