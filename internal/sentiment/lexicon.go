package sentiment

// lexiconEntry holds the base polarity [-1,1] and subjectivity [0,1] of one word.
type lexiconEntry struct {
	polarity     float64
	subjectivity float64
}

// negators flip and dampen the polarity of the next scored word.
var negators = map[string]bool{
	"não":    true,
	"nao":    true,
	"nunca":  true,
	"jamais": true,
	"nem":    true,
	"sem":    true,
	"not":    true,
}

// intensifiers scale the polarity of the next scored word.
var intensifiers = map[string]float64{
	"muito":        1.3,
	"muita":        1.3,
	"super":        1.3,
	"extremamente": 1.5,
	"totalmente":   1.3,
	"demais":       1.3,
	"bastante":     1.2,
	"bem":          1.1,
	"really":       1.3,
	"very":         1.3,
	"pouco":        0.7,
	"meio":         0.7,
}

// lexicon is a compact Portuguese-centric polarity/subjectivity word list with
// a few English entries for mixed-language chats. Values follow the usual
// lexical-sentiment conventions; exact numbers matter less than the sign and
// rough magnitude, since the classifier contract is defined by the 0.1 bucket
// boundaries.
var lexicon = map[string]lexiconEntry{
	// Strong positive
	"adorei":      {0.8, 0.9},
	"adoro":       {0.8, 0.9},
	"amei":        {0.9, 0.9},
	"amo":         {0.9, 0.9},
	"excelente":   {0.9, 0.8},
	"perfeito":    {0.9, 0.9},
	"perfeita":    {0.9, 0.9},
	"maravilhoso": {0.9, 0.9},
	"maravilhosa": {0.9, 0.9},
	"incrível":    {0.9, 0.9},
	"fantástico":  {0.9, 0.9},
	"ótimo":       {0.8, 0.8},
	"ótima":       {0.8, 0.8},
	"otimo":       {0.8, 0.8},
	"love":        {0.8, 0.9},
	"excellent":   {0.9, 0.8},
	"perfect":     {0.9, 0.9},
	"great":       {0.8, 0.8},
	"awesome":     {0.9, 0.9},

	// Mild positive
	"bom":       {0.5, 0.6},
	"boa":       {0.5, 0.6},
	"legal":     {0.5, 0.6},
	"gostei":    {0.6, 0.8},
	"gosto":     {0.5, 0.7},
	"feliz":     {0.7, 0.8},
	"satisfeito": {0.6, 0.7},
	"satisfeita": {0.6, 0.7},
	"obrigado":  {0.5, 0.4},
	"obrigada":  {0.5, 0.4},
	"parabéns":  {0.7, 0.6},
	"recomendo": {0.7, 0.7},
	"ajudou":    {0.5, 0.5},
	"funciona":  {0.3, 0.3},
	"funcionou": {0.4, 0.4},
	"rápido":    {0.4, 0.5},
	"quero":     {0.3, 0.5},
	"interessante": {0.4, 0.5},
	"good":      {0.5, 0.6},
	"thanks":    {0.5, 0.4},
	"nice":      {0.5, 0.6},
	"happy":     {0.7, 0.8},

	// Mild negative
	"ruim":        {-0.6, 0.7},
	"chato":       {-0.5, 0.7},
	"chata":       {-0.5, 0.7},
	"caro":        {-0.3, 0.5},
	"cara":        {-0.3, 0.5},
	"demora":      {-0.4, 0.5},
	"demorado":    {-0.4, 0.5},
	"lento":       {-0.4, 0.5},
	"difícil":     {-0.4, 0.6},
	"problema":    {-0.4, 0.4},
	"problemas":   {-0.4, 0.4},
	"erro":        {-0.4, 0.4},
	"errado":      {-0.4, 0.5},
	"cancelar":    {-0.4, 0.5},
	"cancelei":    {-0.5, 0.6},
	"desistir":    {-0.5, 0.6},
	"reclamar":    {-0.5, 0.6},
	"reclamação":  {-0.5, 0.6},
	"entendi":     {0.2, 0.4},
	"bad":         {-0.6, 0.7},
	"slow":        {-0.4, 0.5},
	"expensive":   {-0.3, 0.5},

	// Strong negative
	"péssimo":    {-0.9, 0.9},
	"péssima":    {-0.9, 0.9},
	"pessimo":    {-0.9, 0.9},
	"horrível":   {-0.9, 0.9},
	"horrivel":   {-0.9, 0.9},
	"terrível":   {-0.9, 0.9},
	"odeio":      {-0.9, 0.9},
	"odiei":      {-0.9, 0.9},
	"detesto":    {-0.8, 0.9},
	"frustrado":  {-0.7, 0.8},
	"frustrada":  {-0.7, 0.8},
	"frustrante": {-0.7, 0.8},
	"irritado":   {-0.7, 0.8},
	"irritada":   {-0.7, 0.8},
	"absurdo":    {-0.7, 0.8},
	"enganação":  {-0.8, 0.8},
	"golpe":      {-0.8, 0.7},
	"nojo":       {-0.8, 0.9},
	"lixo":       {-0.8, 0.8},
	"horrible":   {-0.9, 0.9},
	"terrible":   {-0.9, 0.9},
	"hate":       {-0.9, 0.9},
	"awful":      {-0.9, 0.9},
}
