package main

import "github.com/inovacc/repoload/cmd"

func main() {
	cmd.Execute()
}
