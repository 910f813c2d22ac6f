package main

import "github.com/vietdv277/gpuws/cmd"

func main() {
	cmd.Execute()
}
