// Command satauth manages a satellite session from the command line.
package main

import "github.com/jonwraymond/satauth/cmd/satauth/cmd"

func main() {
	cmd.Execute()
}
