package user

import "github.com/sarchlab/exokern/lib"

// Hello prints a greeting.
func Hello(u *lib.User) {
	u.Printf("hello, world\n")
	u.Printf("i am environment %v\n", u.ThisEnv().ID)
}

// Yield gives up the CPU n times.
func Yield(n int) func(u *lib.User) {
	return func(u *lib.User) {
		id := u.ThisEnv().ID

		u.Printf("Hello, I am environment %v.\n", id)
		for i := 0; i < n; i++ {
			u.Yield()
			u.Printf("Back in environment %v, iteration %d.\n", id, i)
		}
		u.Printf("All done in environment %v.\n", id)
	}
}
