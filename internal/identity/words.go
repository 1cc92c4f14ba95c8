package identity

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
	"misty", "quiet", "amber", "lucky", "dusty", "rusty", "frosty", "sunny", "witty", "nimble",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"duckling", "fawn", "lamb", "porcupine", "raccoon", "mole", "ferret", "weasel", "beaver", "seahorse",
	"starfish", "dolphin", "whale", "narwhal", "penguin", "flamingo", "pelican", "sparrow", "robin", "toucan",
	"parrot", "canary", "heron", "lynx", "badger", "marten", "gecko", "tapir", "bison", "moth",
}
