package main

import "github.com/atikulmunna/poplog/internal/cmd"

func main() {
	cmd.Execute()
}
