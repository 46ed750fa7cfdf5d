// main.go
package main

import "github.com/Slade66/hourglass/internal/cli"

func main() {
	cli.Execute()
}
