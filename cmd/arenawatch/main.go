// Command arenawatch tracks movement on the arena leaderboards.
package main

func main() {
	Execute()
}
