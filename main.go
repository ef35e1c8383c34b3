package main

import "github.com/ChannyClaus/silx/cmd"

func main() {
	cmd.Execute()
}
