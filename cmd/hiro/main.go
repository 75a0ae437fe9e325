// Command hiro runs the hiro MCP tool server.
package main

import "github.com/kwkeefer/hiro/cmd/hiro/cmd"

func main() {
	cmd.Execute()
}
