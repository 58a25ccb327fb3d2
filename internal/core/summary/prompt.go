package summary

import "github.com/agenthands/synergy/internal/platform"

const DefaultPrompt = `You are part of a chat system. Your answer is parsed as JSON by a program, so always reply with a single valid JSON object and nothing else.

The input is a JSON object with:
1. "existingTopics": names of every topic that already exists.
2. "previousSubgroups": name and summary of every earlier subgroup of the conversation.
3. "currentSubgroup": name, summary and topics of the active subgroup, or null.
4. "unprocessedItems": new items, each with an "id" and a "text".

Sort the new items into the flow of the conversation: either they all continue the current subgroup, or a new subgroup starts at one of them.

Reply with:
1. "conversationData": {"name", "summary"} for the whole conversation, taking every old and new subgroup into account.
2. "currentSubgroup": null, or {"name", "summary", "topics"} of the current subgroup after adding the items that belong to it.
3. "newSubgroup": null, or {"name", "summary", "topics", "firstItemId"} when the items shift to a new subject.

Items are related to the current subgroup when they discuss, contrast or expand on its themes, even in different words.
Only treat the conversation as shifted when an item introduces topics unrelated to the preceding items, does not refer back to them, and the following items go along with the shift.
If "previousSubgroups" is empty the conversation has just begun: always return a "newSubgroup".

For a new subgroup:
- "name": a 1 to 3 word title.
- "summary": a 1 to 3 sentence summary.
- "firstItemId": the id of its first item.
- "topics": 1 to 5 objects with a "name" (one lowercase word) and a "relevance" number from 0 to 100.
Reuse a name from "existingTopics" instead of inventing a near duplicate (use "food", not "foods", when "food" exists).

"conversationData.name" is a 1 to 3 word title and "conversationData.summary" a 1 to 3 sentence summary.

Do not wrap the JSON in code fences, do not add text outside it and do not use "=".
If your answer cannot be parsed you get the same input again with a "jsonParseError" field describing the problem. Avoid repeating that mistake and do not mention it in the summaries or topics.`

var DefaultExamples = []platform.TaskExample{
	{
		Input: `{
  "existingTopics": [],
  "previousSubgroups": [],
  "currentSubgroup": null,
  "unprocessedItems": [
    { "id": "1", "text": "The universe is constantly expanding, but scientists are still debating the exact rate." },
    { "id": "2", "text": "Dark energy is thought to play a significant role in driving the expansion of the universe." },
    { "id": "3", "text": "Recent measurements suggest there may be discrepancies in the Hubble constant values." },
    { "id": "4", "text": "These discrepancies might point to unknown physics beyond our current models." },
    { "id": "5", "text": "For instance, some theories suggest modifications to general relativity could explain this." }
  ]
}`,
		Output: `{
  "conversationData": {
    "name": "Cosmic Expansion",
    "summary": "The conversation explores the expansion of the universe, the role of dark energy, discrepancies in the Hubble constant, and potential modifications to general relativity."
  },
  "currentSubgroup": null,
  "newSubgroup": {
    "name": "Cosmic Expansion",
    "summary": "Discussion about the universe's expansion, dark energy, Hubble constant discrepancies and possible new physics.",
    "firstItemId": "1",
    "topics": [
      { "name": "universe", "relevance": 100 },
      { "name": "expansion", "relevance": 100 },
      { "name": "darkenergy", "relevance": 90 },
      { "name": "hubble", "relevance": 80 },
      { "name": "relativity", "relevance": 70 }
    ]
  }
}`,
	},
	{
		Input: `{
  "existingTopics": ["universe", "expansion", "darkenergy", "hubble", "relativity"],
  "previousSubgroups": [
    { "name": "Cosmic Expansion", "summary": "Discussion about the universe's expansion, dark energy, Hubble constant discrepancies and possible new physics." }
  ],
  "currentSubgroup": {
    "name": "Cosmic Expansion",
    "summary": "Discussion about the universe's expansion, dark energy, Hubble constant discrepancies and possible new physics.",
    "topics": ["universe", "expansion", "darkenergy", "hubble", "relativity"]
  },
  "unprocessedItems": [
    { "id": "6", "text": "The cosmic microwave background also helps refine our estimates of the Hubble constant." },
    { "id": "7", "text": "Its measurements are among the most precise but still leave room for debate about the true value." },
    { "id": "8", "text": "By the way, a great way to bring out flavors in vegetables is to roast them with olive oil, garlic, and herbs." },
    { "id": "9", "text": "Caramelization from roasting adds depth to vegetables like carrots and Brussels sprouts." },
    { "id": "10", "text": "And don't forget to season generously with salt and pepper before baking!" }
  ]
}`,
		Output: `{
  "conversationData": {
    "name": "Universe and Cooking",
    "summary": "The conversation covers precise measurements of the universe's expansion and then turns to tips for roasting vegetables."
  },
  "currentSubgroup": {
    "name": "Cosmic Expansion",
    "summary": "Discussion about the universe's expansion, dark energy and precise Hubble constant measurements such as the cosmic microwave background.",
    "topics": [
      { "name": "universe", "relevance": 100 },
      { "name": "expansion", "relevance": 100 },
      { "name": "hubble", "relevance": 90 }
    ]
  },
  "newSubgroup": {
    "name": "Vegetable Roasting",
    "summary": "Tips for roasting vegetables with olive oil, garlic, herbs and seasoning to get caramelization and depth.",
    "firstItemId": "8",
    "topics": [
      { "name": "cooking", "relevance": 100 },
      { "name": "vegetables", "relevance": 100 },
      { "name": "roasting", "relevance": 90 }
    ]
  }
}`,
	},
	{
		Input: `{
  "existingTopics": ["fitness", "health", "nutrition"],
  "previousSubgroups": [
    { "name": "Fitness and Nutrition", "summary": "Discussion about balanced nutrition in support of fitness and overall health." }
  ],
  "currentSubgroup": {
    "name": "Fitness and Nutrition",
    "summary": "Discussion about balanced nutrition in support of fitness and overall health.",
    "topics": ["fitness", "health", "nutrition"]
  },
  "unprocessedItems": [
    { "id": "6", "text": "A well-rounded fitness routine includes both cardio and strength training." },
    { "id": "7", "text": "Proper hydration is also essential for maximizing workout performance." },
    { "id": "8", "text": "Speaking of hydration, the mineral content in water can affect recovery times." },
    { "id": "9", "text": "For example, electrolyte-rich water helps replenish what is lost through sweat." },
    { "id": "10", "text": "This shows how nutrition and hydration are deeply connected to fitness results." }
  ]
}`,
		Output: `{
  "conversationData": {
    "name": "Fitness and Nutrition",
    "summary": "The conversation stresses balanced nutrition and hydration for fitness, including how minerals and electrolytes in water aid recovery."
  },
  "currentSubgroup": {
    "name": "Fitness and Nutrition",
    "summary": "Discussion about nutrition, hydration and how mineral-rich water supports recovery and performance.",
    "topics": [
      { "name": "fitness", "relevance": 100 },
      { "name": "nutrition", "relevance": 100 },
      { "name": "health", "relevance": 90 },
      { "name": "hydration", "relevance": 80 }
    ]
  },
  "newSubgroup": null
}`,
	},
}
