package domain

import (
	"fmt"
	"strings"
)

// Policy describes which questions are in scope and how the search
// capabilities must signal out-of-band conditions.
type Policy struct {
	Institution          string
	Topics               []string
	AllowPeopleQuestions bool
}

func DefaultPolicy() Policy {
	return Policy{
		Institution:          "VinUni",
		Topics:               append([]string(nil), defaultTopics...),
		AllowPeopleQuestions: true,
	}
}

// Instruction renders the fixed block appended to every outbound query.
func (p Policy) Instruction() string {
	institution := strings.TrimSpace(p.Institution)
	if institution == "" {
		institution = "the university"
	}

	topics := make([]string, 0, len(p.Topics))
	for _, topic := range p.Topics {
		if t := strings.TrimSpace(topic); t != "" {
			topics = append(topics, t)
		}
	}

	var b strings.Builder
	b.WriteString("You are an AI assistant restricted to answering questions under all these conditions.\n\n")
	b.WriteString("**RESPONSE CONDITIONS**\n")
	fmt.Fprintf(&b, "1. You MUST ONLY answer if the question is related to %s or university-related topics.\n", institution)
	if len(topics) > 0 {
		fmt.Fprintf(&b, "   - University-related topics include: %s, etc.\n", strings.Join(topics, ", "))
	}
	if p.AllowPeopleQuestions {
		fmt.Fprintf(&b, "   - Questions asking about specific individuals (faculty, staff, researchers or students) in relation to their roles or involvement at %s ARE allowed.\n", institution)
	}
	fmt.Fprintf(&b, "2. If the question is NOT related to %s or university topics, respond with exactly: %s\n\n", institution, SentinelDenied)
	b.WriteString("**ANSWER SOURCE CONDITIONS**\n")
	b.WriteString("- You must ONLY use the content provided by the search tool.\n")
	fmt.Fprintf(&b, "- If the answer is not found in the provided content, respond with exactly: %s\n\n", SentinelNotFound)
	b.WriteString("**IMPORTANT**\n")
	b.WriteString("- You may NEVER answer using your own general knowledge.\n")
	b.WriteString("- You may NEVER infer or guess the answer if it is not explicitly in the retrieved content.\n\n")
	b.WriteString("Now, process the user question strictly under these rules.")
	return b.String()
}

var defaultTopics = []string{
	"admissions", "scholarships", "awards", "application procedures", "required documents",
	"courses", "curriculum design", "faculty", "staff", "research", "research funding",
	"majors", "minors", "double majors", "interdisciplinary programs", "students",
	"enrollment statistics", "student demographics", "campus life", "student engagement",
	"student satisfaction", "tuition fees", "payment plans", "financial aid", "grants",
	"fellowships", "assistantships", "exchange programs", "study abroad opportunities",
	"internships", "job placement", "co-op programs", "career services", "resume building",
	"alumni relations", "networking events", "student organizations", "clubs", "societies",
	"honor societies", "housing", "dormitories", "off-campus housing",
	"mental health counseling", "psychological services", "wellness programs",
	"disability and accessibility services", "academic accommodations",
	"international student support", "immigration advising", "language learning services",
	"orientation programs", "welcome weeks", "mentorship programs", "tutoring services",
	"academic advising", "course registration", "transfer credits", "online learning",
	"hybrid courses", "learning management systems (LMS)", "educational technology",
	"classroom technology", "computer labs", "Wi-Fi access", "IT support", "library resources",
	"digital libraries", "archives", "study rooms", "academic journals", "laboratories",
	"research centers", "innovation hubs", "incubators", "startup support",
	"intellectual property services", "patents", "university rankings", "accreditations",
	"recognitions", "institutional partnerships", "university governance", "administration",
	"student government", "code of conduct", "campus safety", "emergency procedures",
	"security services", "sustainability initiatives", "recycling programs", "green buildings",
	"campus events", "lectures", "workshops", "conferences", "student festivals",
	"cultural celebrations", "sports and athletics", "varsity teams", "intramural sports",
	"fitness centers", "recreation programs", "graduate and postgraduate programs",
	"thesis and dissertation support", "honors programs", "continuing education",
	"lifelong learning", "certificate programs", "community outreach",
	"volunteering opportunities", "civic engagement", "multicultural affairs",
	"diversity and inclusion programs", "climate surveys", "university history", "traditions",
	"mascots", "university merchandise", "bookstores", "lost and found", "campus maps",
}
