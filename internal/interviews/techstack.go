package interviews

import (
	"math/rand"
	"strings"
)

// techMappings folds the spellings users type into canonical tech names.
var techMappings = map[string]string{
	"react.js": "react", "reactjs": "react", "react": "react",
	"next.js": "nextjs", "nextjs": "nextjs", "next": "nextjs",
	"vue.js": "vuejs", "vuejs": "vuejs", "vue": "vuejs",
	"express.js": "express", "expressjs": "express", "express": "express",
	"node.js": "nodejs", "nodejs": "nodejs", "node": "nodejs",
	"mongodb": "mongodb", "mongo": "mongodb", "mongoose": "mongoose",
	"mysql": "mysql", "postgresql": "postgresql", "sqlite": "sqlite",
	"firebase": "firebase", "docker": "docker", "kubernetes": "kubernetes",
	"aws": "aws", "azure": "azure", "gcp": "gcp",
	"digitalocean": "digitalocean", "heroku": "heroku",
	"photoshop": "photoshop", "adobe photoshop": "photoshop",
	"html5": "html5", "html": "html5", "css3": "css3", "css": "css3",
	"sass": "sass", "scss": "sass", "less": "less",
	"tailwindcss": "tailwindcss", "tailwind": "tailwindcss",
	"bootstrap": "bootstrap", "jquery": "jquery",
	"typescript": "typescript", "ts": "typescript",
	"javascript": "javascript", "js": "javascript",
	"angular.js": "angular", "angularjs": "angular", "angular": "angular",
	"ember.js": "ember", "emberjs": "ember", "ember": "ember",
	"backbone.js": "backbone", "backbonejs": "backbone", "backbone": "backbone",
	"nestjs": "nestjs", "graphql": "graphql", "graph ql": "graphql", "apollo": "apollo",
	"webpack": "webpack", "babel": "babel",
	"rollup.js": "rollup", "rollupjs": "rollup", "rollup": "rollup",
	"parcel.js": "parcel", "parceljs": "parcel",
	"npm": "npm", "yarn": "yarn",
	"git": "git", "github": "github", "gitlab": "gitlab", "bitbucket": "bitbucket",
	"figma": "figma", "prisma": "prisma", "redux": "redux", "flux": "flux", "redis": "redis",
	"selenium": "selenium", "cypress": "cypress", "jest": "jest", "mocha": "mocha", "chai": "chai", "karma": "karma",
	"vuex": "vuex", "nuxt.js": "nuxt", "nuxtjs": "nuxt", "nuxt": "nuxt",
	"strapi": "strapi", "wordpress": "wordpress", "contentful": "contentful",
	"netlify": "netlify", "vercel": "vercel", "aws amplify": "amplify",
}

// NormalizeTech returns the canonical name for one tech entry. Unknown
// entries are lower-cased and returned as-is.
func NormalizeTech(tech string) string {
	key := strings.ToLower(strings.TrimSpace(tech))
	if v, ok := techMappings[key]; ok {
		return v
	}
	if v, ok := techMappings[strings.TrimSuffix(key, ".js")]; ok {
		return v
	}
	return key
}

// NormalizeTechstack splits a comma-separated list and normalizes each
// entry, dropping blanks and duplicates while keeping order.
func NormalizeTechstack(raw string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		t := NormalizeTech(part)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Covers are the interview card images served by the web app.
var Covers = []string{
	"/adobe.png",
	"/amazon.png",
	"/facebook.png",
	"/hostinger.png",
	"/pinterest.png",
	"/quora.png",
	"/reddit.png",
	"/skype.png",
	"/spotify.png",
	"/telegram.png",
	"/tiktok.png",
	"/yahoo.png",
}

// RandomCover picks a cover image.
func RandomCover() string {
	return Covers[rand.Intn(len(Covers))]
}
