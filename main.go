package main

import "github.com/kozaktomas/facecluster/cmd"

func main() {
	cmd.Execute()
}
