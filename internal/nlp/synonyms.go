package nlp

// synonymGroups lists equivalent phrasings of a skill. The first entry is the
// canonical form. Entries are written already normalized. Short variants that
// are also plain English words ("go", "rest", "cv") are left out.
var synonymGroups = [][]string{
	{"nlp", "natural language processing"},
	{"machine learning", "ml"},
	{"deep learning", "dl", "neural networks"},
	{"artificial intelligence", "ai"},
	{"computer vision", "image processing"},
	{"llm", "llms", "large language model", "large language models"},
	{"cnn", "convolutional neural network", "convolutional neural networks"},
	{"gan", "generative adversarial network", "generative adversarial networks"},
	{"pca", "principal component analysis"},
	{"autoencoder", "auto encoder", "autoencoders"},
	{"transformer", "transformers"},
	{"scikit learn", "sklearn", "scikitlearn"},
	{"tensorflow", "keras"},
	{"pytorch", "torch"},
	{"numpy", "num py"},
	{"pandas", "dataframes"},
	{"data analysis", "data analytics", "analyzing data"},
	{"kubernetes", "k8s"},
	{"docker", "containerization", "containers"},
	{"golang", "go lang"},
	{"javascript", "js"},
	{"postgresql", "postgres"},
	{"sql", "structured query language"},
	{"rest api", "restful api", "rest apis"},
	{"cicd", "ci cd", "continuous integration", "continuous delivery"},
	{"aws", "amazon web services"},
	{"gcp", "google cloud platform", "google cloud"},
	{"git", "github", "gitlab", "version control"},
	{"fastapi", "fast api"},
	{"communication", "communication skills", "interpersonal skills"},
	{"teamwork", "team player", "collaboration"},
}

// synonymIndex maps every member of a group to the whole group.
// Built once at init; read-only afterwards.
var synonymIndex = buildSynonymIndex(synonymGroups)

func buildSynonymIndex(groups [][]string) map[string][]string {
	index := make(map[string][]string)
	for _, group := range groups {
		for _, member := range group {
			index[member] = append(index[member], group...)
		}
	}
	return index
}

// Expand returns the normalized skill followed by its known variant
// phrasings. Unknown skills expand to themselves only; blank skills to nothing.
func Expand(skill string) []string {
	base := Normalize(skill)
	if base == "" {
		return []string{}
	}

	out := []string{base}
	seen := map[string]struct{}{base: {}}
	for _, variant := range synonymIndex[base] {
		if _, ok := seen[variant]; ok {
			continue
		}
		seen[variant] = struct{}{}
		out = append(out, variant)
	}

	return out
}
