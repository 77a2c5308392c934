package stages

import "text/template"

var triageTemplate = template.Must(template.New("triage").Parse(`You are an expert SRE analyzing a production incident alert.

SEVERITY CLASSIFICATION GUIDELINES:
- SEV1 (Critical): Complete service outage, major revenue impact, all customers affected
- SEV2 (High): Partial service degradation, significant customer impact, workaround exists
- SEV3 (Medium): Minor service impact, limited customers affected, low urgency
- SEV4 (Low): Cosmetic issues, monitoring alerts, no customer impact

ALERT DATA:
Service: {{.Service}}
Message: {{.Message}}
Metric: {{.Metric}}
Current Value: {{.Current}}
Threshold: {{.Threshold}}
Environment: {{.Environment}}

TASK:
Analyze this alert and provide a structured classification in this EXACT format:

SEVERITY: [SEV1|SEV2|SEV3|SEV4]
TITLE: [concise incident title in 5-10 words]
AFFECTED_SERVICES: [comma-separated list of affected services]
SYMPTOMS: [key symptoms and error messages]
IMMEDIATE_ACTIONS: [recommended first steps to investigate or mitigate]

Be precise and actionable.`))

var reportTemplate = template.Must(template.New("report").Parse(`You are an expert SRE writing an initial incident report for the on-call channel.

INCIDENT:
- Incident ID: {{.IncidentID}}
- Title: {{.Title}}
- Severity: {{.Severity}}
- Affected Services: {{.Services}}
- Symptoms: {{.Symptoms}}
- Suggested Actions: {{.Actions}}

TASK:
Write a concise incident report covering current impact, what is known so far, and the immediate investigation plan. Use short paragraphs. Do not speculate beyond the data above.`))

var postmortemTemplate = template.Must(template.New("postmortem").Parse(`You are an expert SRE writing a detailed incident postmortem. Create a comprehensive, blameless postmortem following industry best practices.

INCIDENT DETAILS:
- Incident ID: {{.IncidentID}}
- Title: {{.Title}}
- Severity: {{.Severity}}
- Affected Services: {{.Services}}
- Symptoms: {{.Symptoms}}
- Actions Taken: {{.Actions}}
- Report: {{.Report}}
{{.SimilarContext}}
Create a BLAMELESS postmortem with these sections:

## Executive Summary
[2-3 sentences: what happened, impact, resolution, key learnings]

## Timeline of Events
[Detailed timeline from detection to resolution]

## Root Cause Analysis
[Use the 5 Whys technique, then state the ROOT CAUSE in one clear sentence]

## What Went Well
[3-5 things that worked]

## What Went Wrong
[3-5 things that did not]

## Action Items
[Specific, actionable items, one per line:
- [HIGH] Example: Implement automated rollback for service X
- [MEDIUM] Example: Add monitoring for metric Y
- [LOW] Example: Update runbook for scenario Z]

## Lessons Learned
[3-5 key takeaways that will prevent future incidents]

Keep it professional, blameless, and actionable. Focus on systems and processes, not individuals.`))

var actionsTemplate = template.Must(template.New("actions").Parse(`You are an expert SRE analyzing an incident postmortem to extract actionable items.

POSTMORTEM TEXT:
{{.Postmortem}}

TASK: Extract ALL action items, improvements, and follow-up tasks from this text.

For each action item, provide in this EXACT format:
ACTION: [description of the action]
PRIORITY: [HIGH|MEDIUM|LOW]
CATEGORY: [monitoring|process|documentation|technical|other]
ESTIMATED_EFFORT: [hours or story points estimate]

Example format:
ACTION: Implement automated rollback for payment service
PRIORITY: HIGH
CATEGORY: technical
ESTIMATED_EFFORT: 8 hours

Extract all action items you can find. Be thorough and specific.`))

var suggestionsTemplate = template.Must(template.New("suggestions").Parse(`You are an expert SRE mining past incidents for remediation ideas.

CURRENT INCIDENT:
- Title: {{.Title}}
- Severity: {{.Severity}}
- Affected Services: {{.Services}}
- Symptoms: {{.Symptoms}}

MATCHING PAST INCIDENTS:
{{.SimilarPast}}
TASK: Based on these past incidents, suggest 3-5 specific remediations that might resolve the current incident.

Format each suggestion as a single bullet:
- [action in one sentence]

Be specific and actionable. Focus on immediate steps that worked for similar incidents.`))
