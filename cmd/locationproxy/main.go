// Command locationproxy runs one member of a federation of location-proxy
// servers. See internal/cli for the command surface.
package main

import "locationproxy/internal/cli"

func main() {
	cli.Execute()
}
