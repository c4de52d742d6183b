package main

import "github.com/mgmu/greenlog/cmd"

func main() {
	cmd.Execute()
}
