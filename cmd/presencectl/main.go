// Command presencectl is the operator tool for an attendance kiosk.
package main

import "github.com/okian/presence/internal/cli"

func main() {
	cli.Execute()
}
