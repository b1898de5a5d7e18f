package consensus

// Reference vocabularies offered to backends. They guide rather than
// constrain: backends may answer outside them. Shared read-only.
var (
	MainGenres = []string{
		"Electronic", "Pop", "Rock", "Hip Hop", "R&B", "Jazz", "Classical", "Folk", "Country", "Blues",
		"Reggae", "Latin", "Metal", "Soul", "Funk", "Disco", "House", "Techno", "Trance", "Dubstep",
		"Drum & Bass", "Ambient", "Trap", "Indie", "Alternative", "Punk", "Gospel", "Soundtrack", "World", "Experimental",
		"K-Pop", "J-Pop", "Afrobeats", "Reggaeton", "Ska", "Grime", "Garage", "Industrial", "New Age", "Lo-Fi",
	}

	SubGenres = []string{
		"Synthwave", "Deep House", "Future Bass", "Trap", "Boombap", "Indie Rock", "Alternative Rock", "Pop Punk",
		"Neo Soul", "Nu Metal", "Tech House", "Progressive House", "Liquid DnB", "Neurofunk", "Dub", "Dancehall",
		"Bossa Nova", "Salsa", "Bachata", "Flamenco", "Swing", "Bebop", "Fusion", "Smooth Jazz", "Chamber Pop",
		"Electropop", "Hyperpop", "Vaporwave", "Chillhop", "Lofi Hip Hop", "Hardstyle", "Psytrance", "Acid Techno",
		"Minimal Techno", "Melodic Techno", "Post-Rock", "Shoegaze", "Dream Pop", "Grunge", "Emo", "Metalcore",
		"Death Metal", "Black Metal", "Symphonic Metal", "Orchestral", "Cinematic", "Epic", "Trailer", "Meditation", "Drone",
	}

	Moods = []string{
		"Energetic", "Uplifting", "Happy", "Euphoric", "Excited", "Confident", "Determined", "Powerful", "Aggressive", "Tense",
		"Dark", "Ominous", "Melancholic", "Sad", "Emotional", "Sentimental", "Nostalgic", "Romantic", "Love", "Passion",
		"Calm", "Relaxed", "Chill", "Peaceful", "Serene", "Ethereal", "Dreamy", "Hypnotic", "Mysterious", "Spiritual",
		"Meditative", "Focus", "Study", "Groovy", "Funky", "Sexy", "Seductive", "Playful", "Quirky", "Funny",
		"Dramatic", "Epic", "Cinematic", "Hopeful", "Inspiring", "Motivational", "Carefree", "Sunny", "Warm", "Cold",
	}

	Instruments = []string{
		"Synthesizer", "Electric Guitar", "Acoustic Guitar", "Bass Guitar", "Upright Bass", "Drum Kit", "Electronic Drums", "Drum Machine", "Percussion", "Piano",
		"Grand Piano", "Electric Piano", "Rhodes", "Wurlitzer", "Organ", "Hammond Organ", "Violin", "Viola", "Cello", "Double Bass",
		"Strings Section", "Brass Section", "Trumpet", "Saxophone", "Trombone", "Tuba", "French Horn", "Flute", "Clarinet", "Oboe",
		"Bassoon", "Harp", "Accordion", "Harmonica", "Banjo", "Mandolin", "Ukulele", "Sitar", "Tabla", "Koto",
		"Steel Drums", "Marimba", "Xylophone", "Vibraphone", "Glockenspiel", "Timpani", "Vocals", "Female Vocals", "Male Vocals", "Choir",
		"Backing Vocals", "Sampler", "Turntables", "Didgeridoo", "Bagpipes", "Kalimba", "Handpan", "808 Bass", "Sub Bass", "Pad",
	}

	VocalStyles = []string{
		"Male", "Female", "Duet", "Choir", "Group", "Auto-Tuned", "Falsetto", "Growl", "Screaming", "Rapping",
		"Spoken Word", "Whispering", "Breathy", "Soulful", "Operatic", "Gospel", "Chant", "A Capella", "Processed", "Distorted",
		"Melodic", "Staccato", "Flowing", "Aggressive", "Soft", "Power", "Raspy", "Clean", "Gritty", "None (Instrumental)",
	}
)
