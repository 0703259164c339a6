// Command breaklinks decides what happens to the links pointing at content
// items before they are deleted.
package main

import "github.com/mesh-intelligence/breaklinks/internal/cli"

func main() {
	cli.Execute()
}
