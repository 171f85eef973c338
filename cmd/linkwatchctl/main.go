// Linkwatchctl -- CLI client for the linkwatch daemon REST API.
package main

import "github.com/nettrail/linkwatch/cmd/linkwatchctl/commands"

func main() {
	commands.Execute()
}
