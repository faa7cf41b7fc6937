package main

import "github.com/mossy-p/roomrelay/cmd/meshctl/cmd"

func main() {
	cmd.Execute()
}
